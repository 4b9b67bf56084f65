package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatInvoiceNumber(t *testing.T) {
	ts := time.Date(2025, 1, 15, 9, 30, 0, 0, time.Local)

	tests := []struct {
		name         string
		storeCode    string
		employeeCode string
		seq          int
		want         string
	}{
		{
			name:         "first invoice of the day",
			storeCode:    "DEMO",
			employeeCode: "DE01",
			seq:          1,
			want:         "DEMO-DE01-20250115093000-001",
		},
		{
			name:         "second invoice",
			storeCode:    "DEMO",
			employeeCode: "DE01",
			seq:          2,
			want:         "DEMO-DE01-20250115093000-002",
		},
		{
			name:         "admin default employee",
			storeCode:    "DEMO",
			employeeCode: "",
			seq:          7,
			want:         "DEMO-ADMN-20250115093000-007",
		},
		{
			name:         "short store code padded with X",
			storeCode:    "ab",
			employeeCode: "E1",
			seq:          42,
			want:         "ABXX-E1XX-20250115093000-042",
		},
		{
			name:         "long store code truncated",
			storeCode:    "MEGASTORE",
			employeeCode: "EMPLOYEE",
			seq:          999,
			want:         "MEGA-EMPL-20250115093000-999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatInvoiceNumber(tt.storeCode, tt.employeeCode, ts, tt.seq)
			assert.Equal(t, tt.want, got)
		})
	}
}
