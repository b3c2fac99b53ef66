package main

import (
	"chat-search/domain"
	"chat-search/domain/search"
	"chat-search/infrastructure/index"
	"chat-search/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var keysPrefix string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Scan raw keys of one family",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := newTable("Key", "Kind", "At", "Entity ID", "Detail")
		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := []byte(keysPrefix)
			rows := 0
			for it.Seek(prefix); it.ValidForPrefix(prefix) && rows < limit; it.Next() {
				item := it.Item()
				err := item.Value(func(v []byte) error {
					entry := storage.DescribeEntry(item.KeyCopy(nil), v)
					table.Append([]string{entry.Key, entry.Kind, entry.At, entry.EntityID, shorten(entry.Detail, 80)})
					return nil
				})
				if err != nil {
					return err
				}
				rows++
			}
			return nil
		})
		if err != nil {
			return err
		}
		table.Render()
		return nil
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages <conversationId>",
	Short: "List a conversation, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repository := storage.NewMessageRepository(db, slog.Default())
		messages, err := repository.FindByConversation(cmd.Context(), args[0], domain.NewPage(1, limit, limit))
		if err != nil {
			return err
		}
		printMessages(messages)
		return nil
	},
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "List messages whose event is still pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		repository := storage.NewOutboxRepository(db, slog.Default())
		messages, err := repository.PendingPublish(cmd.Context(), time.Now().UTC(), limit)
		if err != nil {
			return err
		}
		printMessages(messages)
		return nil
	},
}

var deadLettersCmd = &cobra.Command{
	Use:   "deadletters",
	Short: "List events that exhausted their indexing attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		repository := storage.NewDeadLetterRepository(db, slog.Default())
		letters, err := repository.ListDeadLetters(cmd.Context(), limit)
		if err != nil {
			return err
		}
		table := newTable("At", "Message ID", "Topic", "Partition", "Offset", "Attempts", "Reason")
		for _, l := range letters {
			table.Append([]string{
				l.At.Format(timeLayout), l.MessageID, l.Topic,
				strconv.Itoa(l.Partition), strconv.FormatInt(l.Offset, 10), strconv.Itoa(l.Attempts),
				shorten(l.Reason, 60),
			})
		}
		table.Render()
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <conversationId> <terms>",
	Short: "Query the search index of a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if blugePath == "" {
			return fmt.Errorf("--index or BLUGE_FILEPATH is required")
		}
		reader, err := bluge.OpenReader(bluge.DefaultConfig(filepath.Join(blugePath, index.Name)))
		if err != nil {
			return fmt.Errorf("open bluge: %w", err)
		}
		defer reader.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		docs, err := index.SearchReader(ctx, reader, search.NewQuery(args[0], args[1], domain.NewPage(1, limit, limit)))
		if err != nil {
			return err
		}
		table := newTable("Timestamp", "ID", "Sender", "Content")
		for _, d := range docs {
			table.Append([]string{d.Timestamp.Format(timeLayout), d.ID, d.SenderID, shorten(d.Content, 80)})
		}
		table.Render()
		return nil
	},
}

func init() {
	keysCmd.Flags().StringVarP(&keysPrefix, "prefix", "p", storage.Prefixes[0], "key family to scan")
}

func printMessages(messages []domain.Message) {
	table := newTable("Timestamp", "ID", "Conversation", "Sender", "Content")
	for _, m := range messages {
		table.Append([]string{m.Timestamp.Format(timeLayout), m.ID, m.ConversationID, m.SenderID, shorten(m.Content, 80)})
	}
	table.Render()
}
