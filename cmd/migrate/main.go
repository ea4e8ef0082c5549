package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"groundtruth/internal/dto"
	"groundtruth/internal/legacy"
	"groundtruth/internal/model"
	"groundtruth/internal/repository"
	"groundtruth/internal/repository/sqlite"
)

func main() {
	sessionsDir := flag.String("sessions", "validations", "Directory containing legacy <session_id>.json documents")
	dbPath := flag.String("db", "data/sessions.db", "Database path")
	overwrite := flag.Bool("overwrite", false, "Replace sessions that already exist in the database")
	flag.Parse()

	fmt.Printf("Migrating sessions from %s to database %s\n", *sessionsDir, *dbPath)

	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewSessionRepository(db)

	files, err := os.ReadDir(*sessionsDir)
	if err != nil {
		log.Fatalf("Failed to read sessions directory: %v", err)
	}

	migrated, skipped, boxes := 0, 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		sess, err := readSession(filepath.Join(*sessionsDir, file.Name()), file)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		if err := store(repo, sess, *overwrite); err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		migrated++
		boxes += sess.BoxCount()
	}

	if migrated == 0 && skipped == 0 {
		fmt.Println("No sessions found to migrate")
		return
	}

	fmt.Printf("✅ Successfully migrated %d sessions (%d boxes) to database\n", migrated, boxes)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid format, existing session or errors)\n", skipped)
	}

	if total, err := repo.Count(&dto.SessionFilter{}); err == nil {
		fmt.Printf("\n📊 Sessions in database: %d\n", total)
	}
}

func readSession(path string, file os.DirEntry) (*model.Session, error) {
	info, err := file.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to get info: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return legacy.Decode(data, strings.TrimSuffix(file.Name(), ".json"), info.ModTime())
}

// store inserts the session, or replaces an existing one when overwrite is set.
func store(repo *sqlite.SessionRepository, sess *model.Session, overwrite bool) error {
	err := repo.Save(sess)
	if !errors.Is(err, repository.ErrVersionConflict) {
		return err
	}
	if !overwrite {
		return fmt.Errorf("session %s already exists", sess.SessionID)
	}

	_, err = repo.Update(sess.SessionID, false, func(existing *model.Session) error {
		version := existing.Version
		*existing = *sess
		existing.Version = version
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("Replaced existing session %s", sess.SessionID)
	return nil
}
