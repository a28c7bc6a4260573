package pricing

const (
	NotarizedType = "Notorizado"

	NotarizedPerPage     = 20
	CertifiedPerPage     = 15
	BankStatementSurplus = 10
)

// Calculate returns the price in whole dollars:
// pages × (20 if notarized else 15) + 10 for bank statements.
func Calculate(pages int, translationType string, isBankStatement bool) int {
	if pages < 0 {
		pages = 0
	}
	perPage := CertifiedPerPage
	if translationType == NotarizedType {
		perPage = NotarizedPerPage
	}
	total := pages * perPage
	if isBankStatement {
		total += BankStatementSurplus
	}
	return total
}

// CalculateCents is Calculate expressed in cents.
func CalculateCents(pages int, translationType string, isBankStatement bool) int64 {
	return int64(Calculate(pages, translationType, isBankStatement)) * 100
}
