package constants

import (
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	if DefaultPort != "8080" {
		t.Errorf("Expected DefaultPort to be '8080', got '%s'", DefaultPort)
	}

	if DefaultDBDriver != DriverSQLite {
		t.Errorf("Expected DefaultDBDriver to be %q, got %q", DriverSQLite, DefaultDBDriver)
	}

	if DefaultDBDSN != "streampay.db" {
		t.Errorf("Expected DefaultDBDSN to be 'streampay.db', got '%s'", DefaultDBDSN)
	}

	if DefaultCluster != ClusterDevnet {
		t.Errorf("Expected DefaultCluster to be %q, got %q", ClusterDevnet, DefaultCluster)
	}
}

func TestDefaultRate(t *testing.T) {
	// 0.001 SOL per stream
	if DefaultRateLamports*1000 != LamportsPerSOL {
		t.Errorf("Expected default rate to be 0.001 SOL, got %d lamports", DefaultRateLamports)
	}

	if DefaultFeePercent < 0 || DefaultFeePercent > MaxFeePercent {
		t.Errorf("DefaultFeePercent %d outside 0..%d", DefaultFeePercent, MaxFeePercent)
	}
}

func TestTimeouts(t *testing.T) {
	if DefaultConfirmTimeout <= DefaultPollInterval {
		t.Errorf("Confirm timeout %v must exceed poll interval %v", DefaultConfirmTimeout, DefaultPollInterval)
	}

	if DefaultReservationTTL <= DefaultConfirmTimeout {
		t.Errorf("Reservation TTL %v must exceed confirm timeout %v", DefaultReservationTTL, DefaultConfirmTimeout)
	}

	if DefaultAggregationWindow != 24*time.Hour {
		t.Errorf("Expected DefaultAggregationWindow to be 24h, got %v", DefaultAggregationWindow)
	}
}

func TestTableNames(t *testing.T) {
	tables := []string{ArtistsTable, TracksTable, StreamsTable, PaymentsTable, AggregationRunsTable, SettingsTable}
	seen := map[string]bool{}
	for _, name := range tables {
		if name == "" {
			t.Error("Table name should not be empty")
		}
		if seen[name] {
			t.Errorf("Duplicate table name %q", name)
		}
		seen[name] = true
	}
}

func TestRPCRetryDefaults(t *testing.T) {
	if DefaultRetryCount != 3 {
		t.Errorf("Expected DefaultRetryCount to be 3, got %d", DefaultRetryCount)
	}
	if DefaultRetryBase != 1*time.Second {
		t.Errorf("Expected DefaultRetryBase to be 1 second, got %v", DefaultRetryBase)
	}
	if DefaultRPCMinInterval <= 0 || DefaultRPCMinInterval >= DefaultRetryBase {
		t.Errorf("DefaultRPCMinInterval out of range: %v", DefaultRPCMinInterval)
	}
}
