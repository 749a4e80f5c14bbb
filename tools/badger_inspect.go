package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
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

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Default to the primary message records, skipping msgid: index entries
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Time", "Chat", "Sender", "Lang", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// The msgid: keys only hold pointers to primary records
			if strings.HasPrefix(string(item.Key()), "msgid:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var m diskMessage
				if err := msgpack.Unmarshal(v, &m); err != nil {
					// Log and keep scanning instead of stopping the whole script
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				displayChat := m.ChatID
				if len(displayChat) > 8 {
					displayChat = displayChat[:8]
				}

				table.Append([]string{
					string(item.Key()),
					time.Unix(0, m.At).Format("15:04:05"),
					displayChat,
					m.SenderID,
					m.Lang,
					m.Content,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
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
