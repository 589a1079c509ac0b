// Package migrations embeds the SQL schema files applied by the api
// service's migrate command.
package migrations

import "embed"

// Files lists the migrations in apply order.
var Files = []string{
	"001_create_recurring_tasks.sql",
	"002_create_tasks.sql",
	"003_create_task_event_log.sql",
}

//go:embed *.sql
var FS embed.FS
