/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type opener func(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error)

var openers = map[string]opener{
	"mysql":      openMySQL,
	"postgres":   openPostgres,
	"postgresql": openPostgres,
	"sqlite":     openSQLite,
	"sqlite3":    openSQLite,
}

// sqlManager owns one bun database. When HealthCheckInterval is set a
// watcher pings it and reopens the pool after failed checks.
type sqlManager struct {
	config *ConnectionConfig

	mu        sync.RWMutex
	logger    Logger
	db        *bun.DB
	sqlDB     *sql.DB
	lastError error
	health    *HealthStatus
	failures  int
	stopWatch context.CancelFunc
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by bun.
// A nil config means DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &sqlManager{config: config, health: &HealthStatus{}}
}

func (m *sqlManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return nil
	}
	if err := m.openLocked(ctx); err != nil {
		return err
	}
	if m.config.HealthCheckInterval > 0 && m.stopWatch == nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		m.stopWatch = cancel
		go m.watch(watchCtx)
	}
	m.log().Info("Database connected", "type", m.config.Type, "host", m.config.Host, "dbname", m.config.DBName)
	return nil
}

// openLocked opens and pings a new pool. The caller holds m.mu.
func (m *sqlManager) openLocked(ctx context.Context) error {
	if m.config.ConnectTimeout <= 0 {
		m.config.ConnectTimeout = 30 * time.Second
	}
	open, ok := openers[strings.ToLower(m.config.Type)]
	if !ok {
		return fmt.Errorf("unsupported database type: %s", m.config.Type)
	}
	sqlDB, db, err := open(m.config)
	if err != nil {
		m.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	m.configurePool(sqlDB)
	m.installHooks(db)

	pingCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		m.lastError = err
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}
	m.db, m.sqlDB = db, sqlDB
	m.lastError = nil
	m.failures = 0
	return nil
}

// closeLocked closes the pool. The caller holds m.mu.
func (m *sqlManager) closeLocked() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.sqlDB = nil, nil
	if err != nil {
		m.log().Error("Failed to close database connection", "error", err)
	} else {
		m.log().Info("Database connection closed")
	}
	return err
}

func (m *sqlManager) installHooks(db *bun.DB) {
	if m.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	db.AddQueryHook(&ErrorQueryHook{Logger: m.log()})
	if m.config.SlowQueryTime > 0 {
		db.AddQueryHook(&SlowQueryHook{Threshold: m.config.SlowQueryTime, Logger: m.log()})
	}
}

func (m *sqlManager) configurePool(sqlDB *sql.DB) {
	if m.config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(m.config.MaxIdleConns)
	}
	if m.config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(m.config.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)
}

func openMySQL(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	connector, err := mysql.NewConnector(mysqlConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	sqlDB := sql.OpenDB(connector)
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

func mysqlConfig(cfg *ConnectionConfig) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc
}

func openPostgres(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	connector, err := pq.NewConnector(postgresDSN(cfg))
	if err != nil {
		return nil, nil, err
	}
	sqlDB := sql.OpenDB(connector)
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	query.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func openSQLite(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, sqliteDSN(cfg.DBName))
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

// sqliteDSN appends ".db" to bare names. Paths ending in ".db", URIs and
// ":memory:" are used as given.
func sqliteDSN(name string) string {
	switch {
	case name == ":memory:", strings.HasPrefix(name, "file:"), strings.HasSuffix(name, ".db"):
		return name
	}
	return name + ".db"
}

func (m *sqlManager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	return m.closeLocked()
}

// Reconnect replaces the pool with a fresh one. The watcher, if any, keeps
// running.
func (m *sqlManager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log().Info("Attempting to reconnect to the database")
	if err := m.closeLocked(); err != nil {
		m.log().Warn("Error disconnecting existing connection", "error", err)
	}
	return m.openLocked(ctx)
}

func (m *sqlManager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (m *sqlManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *sqlManager) GetSQLDB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB
}

// EnsureTables creates the tables of the models in the default registry.
func (m *sqlManager) EnsureTables(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	models := GetRegisteredModels()
	if err := CreateTables(ctx, db, models...); err != nil {
		return err
	}
	m.log().Debug("Tables ensured", "models", len(models))
	return nil
}

// HealthCheck pings the database and records the result.
func (m *sqlManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}

	m.mu.RLock()
	db, sqlDB := m.db, m.sqlDB
	m.mu.RUnlock()
	if db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}
	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	m.mu.Lock()
	m.lastError = err
	m.health = status
	m.mu.Unlock()
	return status
}

// watch checks the database every HealthCheckInterval. After a failed
// check it reopens the pool, giving up after MaxReconnectTries failures in
// a row.
func (m *sqlManager) watch(ctx context.Context) {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if m.HealthCheck(ctx).Healthy || !m.config.EnableReconnect {
			continue
		}

		m.mu.Lock()
		m.failures++
		tries := m.failures
		m.mu.Unlock()
		if tries > m.config.MaxReconnectTries {
			m.log().Error("Max reconnect attempts reached, stopping", "tries", tries-1)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.config.ReconnectInterval):
		}
		if err := m.Reconnect(ctx); err != nil {
			m.log().Error("Reconnect failed", "error", err, "try", tries)
		}
	}
}

func (m *sqlManager) GetStats() *DBStats {
	sqlDB := m.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (m *sqlManager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// log returns the manager logger, the global one when none was set. It
// does not lock; the logger is set before Connect.
func (m *sqlManager) log() Logger {
	if m.logger != nil {
		return m.logger
	}
	return GetLogger()
}
