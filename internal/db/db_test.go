package db

import (
	"testing"
	_ "time/tzdata"

	"tradesetup/internal/config"
)

func TestDialector(t *testing.T) {
	cases := map[string]string{
		"":         "mysql",
		"MySQL":    "mysql",
		"postgres": "postgres",
	}
	for driver, want := range cases {
		d, err := Dialector(config.DBConfig{Driver: driver, DSN: "x"})
		if err != nil {
			t.Fatalf("driver=%q err=%v", driver, err)
		}
		if d.Name() != want {
			t.Fatalf("driver=%q name=%q want=%q", driver, d.Name(), want)
		}
	}
	if _, err := Dialector(config.DBConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestMySQLOffset(t *testing.T) {
	if got := mysqlOffset("UTC"); got != "+00:00" {
		t.Fatalf("utc=%q", got)
	}
	if got := mysqlOffset("Asia/Kolkata"); got != "+05:30" {
		t.Fatalf("kolkata=%q want=+05:30", got)
	}
}
