package migrations

import _ "embed"

//go:embed 0002_create_attempt_ledgers.sql
var createLedgersSQL string

func init() {
	Migrations.MustRegister(
		exec(createLedgersSQL),
		exec(`DROP TABLE IF EXISTS attempt_facts; DROP TABLE IF EXISTS attempt_ledgers`),
	)
}
