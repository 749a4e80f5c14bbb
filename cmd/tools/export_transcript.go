package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jung-kurt/gofpdf"
	"github.com/mama165/sdk-go/database"
	"github.com/vmihailenco/msgpack/v5"
)

// diskMessage mirrors the store's on-disk message layout.
type diskMessage struct {
	ID       string `msgpack:"id"`
	ChatID   string `msgpack:"chat_id"`
	SenderID string `msgpack:"sender_id"`
	Content  string `msgpack:"content"`
	Lang     string `msgpack:"lang"`
	At       int64  `msgpack:"at"`
}

// Exports a chat's full transcript to a PDF file, oldest message first.
// Meant for sharing or archiving a conversation outside the system.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	chatID := flag.String("chat", "", "Chat to export (required)")
	output := flag.String("out", "transcript.pdf", "Output PDF file")
	flag.Parse()

	if *chatID == "" {
		log.Fatal("missing -chat flag")
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	messages, err := loadTranscript(db, *chatID)
	if err != nil {
		log.Fatal("Error while reading messages: ", err)
	}
	if len(messages) == 0 {
		log.Fatalf("no messages found for chat %s", *chatID)
	}

	if err := writePDF(*output, *chatID, messages); err != nil {
		log.Fatal("Error while writing PDF: ", err)
	}
	fmt.Printf("Exported %d messages to %s\n", len(messages), *output)
}

// loadTranscript scans the chat's primary records. Keys embed a
// zero-padded timestamp, so a forward scan is already chronological.
func loadTranscript(db *badger.DB, chatID string) ([]diskMessage, error) {
	var messages []diskMessage
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("msg:%s:", chatID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var m diskMessage
				if err := msgpack.Unmarshal(v, &m); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(it.Item().Key()), err)
					return nil
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func writePDF(path, chatID string, messages []diskMessage) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 12, fmt.Sprintf("Chat transcript %s", chatID))
	pdf.Ln(16)

	for _, m := range messages {
		pdf.SetFont("Arial", "B", 10)
		header := fmt.Sprintf("%s  %s", time.Unix(0, m.At).Format("2006-01-02 15:04:05"), m.SenderID)
		pdf.Cell(0, 6, header)
		pdf.Ln(6)

		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 5, m.Content, "", "", false)
		pdf.Ln(3)
	}

	return pdf.OutputFileAndClose(path)
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			// Open in write mode once so badger can truncate, then reopen read-only
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
