// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proddb records programming-station sessions: which device
// got which firmware image, when, and how it went.
package proddb // import "github.com/go-boot/stml0/proddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// Session describes one programming run of one device.
type Session struct {
	Serial  string        // device serial number
	Image   string        // image file name
	SHA256  string        // image digest
	Size    int64         // image size, bytes
	Status  string        // "ok" or the failure text
	Started time.Time
	Elapsed time.Duration
}

// DB exposes convenience methods to record and retrieve programming
// sessions from the production database.
type DB struct {
	db   *sql.DB
	name string // name of the production database
}

// Open opens a connection to the production database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("proddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("proddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("proddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// RecordSession appends one programming session to the journal.
func (db *DB) RecordSession(ctx context.Context, s Session) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		`INSERT INTO sessions (serial, image, sha256, size, status, started, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Serial, s.Image, s.SHA256, s.Size, s.Status,
		s.Started, s.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("proddb: could not record session for %q: %w", s.Serial, err)
	}
	return nil
}

// LastSession retrieves the most recent programming session of the
// device with the given serial number.
func (db *DB) LastSession(ctx context.Context, serial string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		s  Session
		ms int64
	)
	rows, err := db.db.QueryContext(
		ctx,
		`SELECT serial, image, sha256, size, status, started, elapsed_ms
		 FROM sessions WHERE serial = ? ORDER BY started DESC LIMIT 1`,
		serial,
	)
	if err != nil {
		return s, fmt.Errorf("proddb: could not query session for %q: %w", serial, err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&s.Serial, &s.Image, &s.SHA256, &s.Size, &s.Status, &s.Started, &ms)
		if err != nil {
			return s, fmt.Errorf("proddb: could not scan session for %q: %w", serial, err)
		}
		s.Elapsed = time.Duration(ms) * time.Millisecond
	}

	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("proddb: could not scan db for %q: %w", serial, err)
	}

	return s, nil
}
