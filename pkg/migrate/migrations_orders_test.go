package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOrdersMigrationEnforcesOccurrenceUniqueness(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_subscriptions_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no subscriptions/orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS subscriptions",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_subscription_occurrence",
		"WHERE subscription_id IS NOT NULL AND status <> 'cancelled'",
		"CHECK (used_credits >= 0)",
		"DROP TABLE IF EXISTS orders",
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Fatalf("migration missing %q", check)
		}
	}
}
