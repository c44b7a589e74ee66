package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "postgres://r1/db", want: []string{"postgres://r1/db"}},
		{name: "trims and skips blanks", input: " postgres://r1/db , ,postgres://r2/db ", want: []string{"postgres://r1/db", "postgres://r2/db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReplicaURLs(tt.input))
		})
	}
}

func TestDetectDriver(t *testing.T) {
	assert.Equal(t, DriverPostgres, DetectDriver("postgres://localhost/shopdesk"))
	assert.Equal(t, DriverPostgres, DetectDriver("postgresql://localhost/shopdesk"))
	assert.Equal(t, DriverSQLite, DetectDriver("file:shopdesk.db"))
	assert.Equal(t, DriverSQLite, DetectDriver(":memory:"))
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestConnectionManagerReplica(t *testing.T) {
	t.Run("no replicas - fallback to primary", func(t *testing.T) {
		primary, _ := newMockDB(t)
		cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger())

		assert.Same(t, primary, cm.Replica())
		assert.Same(t, cm.PrimaryBun(), cm.ReplicaBun())
	})

	t.Run("round-robin selection", func(t *testing.T) {
		primary, _ := newMockDB(t)
		r1, _ := newMockDB(t)
		r2, _ := newMockDB(t)
		r3, _ := newMockDB(t)
		cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger(), r1, r2, r3)

		selections := make(map[*sql.DB]int)
		for i := 0; i < 30; i++ {
			selections[cm.Replica()]++
		}
		assert.Equal(t, 10, selections[r1])
		assert.Equal(t, 10, selections[r2])
		assert.Equal(t, 10, selections[r3])
	})

	t.Run("concurrent selection", func(t *testing.T) {
		primary, _ := newMockDB(t)
		r1, _ := newMockDB(t)
		r2, _ := newMockDB(t)
		cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger(), r1, r2)

		var wg sync.WaitGroup
		results := make(chan *sql.DB, 100)
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- cm.Replica()
				_ = cm.ReplicaBun()
			}()
		}
		wg.Wait()
		close(results)

		selections := make(map[*sql.DB]int)
		for r := range results {
			selections[r]++
		}
		assert.Equal(t, 100, selections[r1]+selections[r2])
	})
}

func TestConnectionManagerAllReplicasReturnsCopy(t *testing.T) {
	primary, _ := newMockDB(t)
	r1, _ := newMockDB(t)
	cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger(), r1)

	replicas := cm.AllReplicas()
	replicas[0] = nil
	assert.Same(t, r1, cm.AllReplicas()[0])
}

func TestConnectionManagerHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		primary, pm := newMockDB(t)
		r1, m1 := newMockDB(t)
		pm.ExpectPing()
		m1.ExpectPing()

		cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger(), r1)
		assert.NoError(t, cm.HealthCheck(context.Background()))
	})

	t.Run("primary down", func(t *testing.T) {
		primary, pm := newMockDB(t)
		pm.ExpectPing().WillReturnError(errors.New("connection refused"))

		cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger())
		err := cm.HealthCheck(context.Background())
		assert.ErrorContains(t, err, "primary unhealthy")
	})

	t.Run("one replica down is tolerated", func(t *testing.T) {
		primary, pm := newMockDB(t)
		r1, m1 := newMockDB(t)
		r2, m2 := newMockDB(t)
		pm.ExpectPing()
		m1.ExpectPing().WillReturnError(errors.New("down"))
		m2.ExpectPing()

		cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger(), r1, r2)
		assert.NoError(t, cm.HealthCheck(context.Background()))
	})

	t.Run("all replicas down", func(t *testing.T) {
		primary, pm := newMockDB(t)
		r1, m1 := newMockDB(t)
		pm.ExpectPing()
		m1.ExpectPing().WillReturnError(errors.New("down"))

		cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger(), r1)
		assert.ErrorContains(t, cm.HealthCheck(context.Background()), "all replicas unhealthy")
	})
}

func TestConnectionManagerRemoveUnhealthyReplicas(t *testing.T) {
	primary, _ := newMockDB(t)
	r1, m1 := newMockDB(t)
	r2, m2 := newMockDB(t)
	m1.ExpectPing().WillReturnError(errors.New("down"))
	m1.ExpectClose()
	m2.ExpectPing()

	cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger(), r1, r2)
	assert.Equal(t, 1, cm.RemoveUnhealthyReplicas(context.Background()))
	assert.Equal(t, []*sql.DB{r2}, cm.AllReplicas())
	assert.Same(t, r2, cm.Replica())
}

func TestConnectionManagerAddReplicaDriverMismatch(t *testing.T) {
	primary, _ := newMockDB(t)
	cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger())

	err := cm.AddReplica("file:replica.db")
	assert.ErrorContains(t, err, "does not match")
}

func TestConnectionManagerClose(t *testing.T) {
	primary, pm := newMockDB(t)
	r1, m1 := newMockDB(t)
	pm.ExpectClose()
	m1.ExpectClose().WillReturnError(errors.New("busy"))

	cm := NewConnectionManagerFromDB(DriverPostgres, primary, quietLogger(), r1)
	err := cm.Close()
	assert.ErrorContains(t, err, "replica-0 close error")
	assert.Empty(t, cm.AllReplicas())
}

func TestNewConnectionManagerSQLite(t *testing.T) {
	cm, err := NewConnectionManager(ConnectionConfig{PrimaryURL: "file::memory:"}, quietLogger())
	require.NoError(t, err)
	defer cm.Close()

	assert.Equal(t, DriverSQLite, cm.Driver())
	assert.Equal(t, 1, cm.Primary().Stats().MaxOpenConnections)
	assert.NoError(t, cm.HealthCheck(context.Background()))
}
