package sequence

import (
	"fmt"
	"strings"
	"time"
)

// AdminEmployeeCode is used when no employee code is supplied (admin-issued
// invoices).
const AdminEmployeeCode = "ADMN"

const codeLength = 4

// FormatInvoiceNumber renders STORE4-EMP4-YYYYMMDDHHmmss-SEQ3. The format
// makes every number self-describing, so a fallback pseudo-sequence still
// yields a practically unique number thanks to the timestamp segment.
func FormatInvoiceNumber(storeCode, employeeCode string, ts time.Time, seq int) string {
	if employeeCode == "" {
		employeeCode = AdminEmployeeCode
	}
	return fmt.Sprintf("%s-%s-%s-%03d",
		padCode(storeCode), padCode(employeeCode), ts.Format("20060102150405"), seq)
}

// padCode uppercases a code and fits it to exactly four characters,
// right-padding with X.
func padCode(code string) string {
	code = strings.ToUpper(code)
	if len(code) > codeLength {
		return code[:codeLength]
	}
	return code + strings.Repeat("X", codeLength-len(code))
}
