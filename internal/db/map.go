package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eve-nerd/internal/graph"
	"eve-nerd/internal/sde"
)

// ErrNoMap is returned by LoadMap when nothing has been cached yet.
var ErrNoMap = errors.New("db: no cached map")

// MapInfo describes the cached map.
type MapInfo struct {
	Source  string
	SavedAt string
	Systems int
}

// SaveMap replaces the cached map with data. source is a free-form label
// (file path or "sde") kept for display.
func (d *DB) SaveMap(data *sde.Data, source string) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"links", "structures", "systems", "regions", "map_meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertAll(tx, `INSERT INTO regions (id, name) VALUES (?, ?)`, len(data.Regions), func(stmt *sql.Stmt) error {
		for id, name := range data.Regions {
			if _, err := stmt.Exec(id, name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save regions: %w", err)
	}

	if err := insertAll(tx, `
		INSERT INTO systems (id, name, region_id, security, x, y, z)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, len(data.Systems), func(stmt *sql.Stmt) error {
		for _, s := range data.Systems {
			if _, err := stmt.Exec(s.ID, s.Name, s.RegionID, s.Security, s.X, s.Y, s.Z); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save systems: %w", err)
	}

	if err := insertAll(tx, `
		INSERT INTO structures (id, system_id, name, kind, x, y, z)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, len(data.Structures), func(stmt *sql.Stmt) error {
		for _, s := range data.Structures {
			if _, err := stmt.Exec(s.ID, s.SystemID, s.Name, int(s.Kind), s.X, s.Y, s.Z); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save structures: %w", err)
	}

	if err := insertAll(tx, `
		INSERT INTO links (from_system, to_system, from_gate, to_gate)
		VALUES (?, ?, ?, ?)`, len(data.Links), func(stmt *sql.Stmt) error {
		for _, l := range data.Links {
			if _, err := stmt.Exec(l.From, l.To, l.FromGate, l.ToGate); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save links: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO map_meta (key, value) VALUES ('source', ?), ('saved_at', ?)`,
		source, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("save map meta: %w", err)
	}
	return tx.Commit()
}

func insertAll(tx *sql.Tx, query string, n int, fn func(*sql.Stmt) error) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	return fn(stmt)
}

// HasMap reports whether a map has been cached.
func (d *DB) HasMap() bool {
	var n int
	if err := d.sql.QueryRow("SELECT COUNT(*) FROM systems").Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// Info returns metadata about the cached map.
func (d *DB) Info() (MapInfo, error) {
	var info MapInfo
	rows, err := d.sql.Query("SELECT key, value FROM map_meta")
	if err != nil {
		return info, err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return info, err
		}
		switch k {
		case "source":
			info.Source = v
		case "saved_at":
			info.SavedAt = v
		}
	}
	if err := rows.Err(); err != nil {
		return info, err
	}
	err = d.sql.QueryRow("SELECT COUNT(*) FROM systems").Scan(&info.Systems)
	return info, err
}

// LoadMap reads the cached map back. It returns ErrNoMap if none is stored.
func (d *DB) LoadMap() (*sde.Data, error) {
	if !d.HasMap() {
		return nil, ErrNoMap
	}
	data := &sde.Data{
		SystemByName: make(map[string]int32),
		Regions:      make(map[int32]string),
	}

	rows, err := d.sql.Query("SELECT id, name FROM regions")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id int32
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, err
		}
		data.Regions[id] = name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.sql.Query("SELECT id, name, region_id, security, x, y, z FROM systems ORDER BY id")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var s graph.System
		if err := rows.Scan(&s.ID, &s.Name, &s.RegionID, &s.Security, &s.X, &s.Y, &s.Z); err != nil {
			rows.Close()
			return nil, err
		}
		data.Systems = append(data.Systems, s)
		if s.Name != "" {
			data.SystemByName[strings.ToLower(s.Name)] = s.ID
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.sql.Query("SELECT id, system_id, name, kind, x, y, z FROM structures ORDER BY id")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var s graph.Structure
		var kind int
		if err := rows.Scan(&s.ID, &s.SystemID, &s.Name, &kind, &s.X, &s.Y, &s.Z); err != nil {
			rows.Close()
			return nil, err
		}
		s.Kind = graph.StructureKind(kind)
		data.Structures = append(data.Structures, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.sql.Query("SELECT from_system, to_system, from_gate, to_gate FROM links ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l graph.Link
		if err := rows.Scan(&l.From, &l.To, &l.FromGate, &l.ToGate); err != nil {
			return nil, err
		}
		data.Links = append(data.Links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return data, nil
}
