package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/eigerco/podmap/pkg/log"
	"github.com/eigerco/podmap/pkg/podmap"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".export"),
	readline.PcItem(".import"),
	readline.PcItem(".exit"),
	readline.PcItem("PUT"),
	readline.PcItem("GET"),
	readline.PcItem("DELETE"),
	readline.PcItem("SCAN"),
	readline.PcItem("RSCAN"),
	readline.PcItem("LAST"),
	readline.PcItem("COUNT"),
)

const helpText = `Commands:
  PUT <id> <pages> <date>   store a book
  GET <id>                  show a book
  DELETE <id>               remove a book
  SCAN [from] [limit]       list books in ascending id order
  RSCAN [limit]             list books in descending id order
  LAST                      show the book with the greatest id
  COUNT                     count stored books
  .export <file>            write every book to a compressed file
  .import <file>            load books written by .export
  .exit                     quit
`

var errQuit = errors.New("quit")

func runShell(books *podmap.Map[uint64, Book], dir string, sync bool) error {
	fmt.Println("podmap shell, enter .help for usage hints.")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("podmap:%s> ", dir),
		HistoryFile:     filepath.Join(os.TempDir(), ".podmap_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	sh := &shell{books: books, out: rl.Stdout(), sync: sync}
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		err = sh.execute(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.out, "Error: %s\n", err)
			log.CLI.Debug().Err(err).Str("line", line).Msg("command failed")
		}
	}
}

type shell struct {
	books *podmap.Map[uint64, Book]
	out   io.Writer
	sync  bool
}

func (s *shell) execute(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	cmd, args := parts[0], parts[1:]
	if strings.HasPrefix(cmd, ".") {
		return s.dotCommand(strings.ToLower(cmd), args)
	}

	switch strings.ToUpper(cmd) {
	case "PUT":
		if len(args) != 3 {
			return errors.New("PUT requires id, pages and date")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		pages, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid pages: %w", err)
		}
		date, err := strconv.ParseInt(args[2], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
		if err := s.books.Store(id, Book{Pages: int32(pages), PublishDate: int32(date)}, s.sync); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "OK")

	case "GET":
		if len(args) != 1 {
			return errors.New("GET requires an id")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		b, ok, err := s.books.FetchOptional(id)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(s.out, "not found")
			return nil
		}
		s.printBook(id, b)

	case "DELETE":
		if len(args) != 1 {
			return errors.New("DELETE requires an id")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := s.books.Remove(id, s.sync); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "OK")

	case "SCAN":
		return s.scan(args)

	case "RSCAN":
		limit, err := parseLimit(args, 0)
		if err != nil {
			return err
		}
		c, err := s.books.End()
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck
		return s.print(c, limit, c.Prev)

	case "LAST":
		id, b, ok, err := s.books.LastEntry()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(s.out, "empty")
			return nil
		}
		s.printBook(id, b)

	case "COUNT":
		n, err := s.books.Len()
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, n)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *shell) dotCommand(cmd string, args []string) error {
	switch cmd {
	case ".help":
		fmt.Fprint(s.out, helpText)
	case ".exit", ".quit":
		return errQuit
	case ".export":
		if len(args) != 1 {
			return errors.New(".export requires a file")
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := s.books.Export(f); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "exported to %s\n", args[0])
	case ".import":
		if len(args) != 1 {
			return errors.New(".import requires a file")
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		n, err := s.books.Import(f, s.sync)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "imported %d books\n", n)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *shell) scan(args []string) error {
	var (
		c   *podmap.Cursor[uint64, Book]
		err error
	)
	if len(args) > 0 {
		from, perr := parseID(args[0])
		if perr != nil {
			return perr
		}
		c, err = s.books.LowerBound(from)
	} else {
		c, err = s.books.Begin()
	}
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck

	limit, err := parseLimit(args, 1)
	if err != nil {
		return err
	}
	return s.print(c, limit, c.Next)
}

// print writes up to limit books (all when limit is 0), stepping with step.
func (s *shell) print(c *podmap.Cursor[uint64, Book], limit int, step func() bool) error {
	for n := 0; c.Valid() && (limit == 0 || n < limit); n++ {
		b, err := c.Value()
		if err != nil {
			return err
		}
		s.printBook(c.Key(), b)
		step()
	}
	return c.Err()
}

func (s *shell) printBook(id uint64, b Book) {
	fmt.Fprintf(s.out, "%d: pages=%d date=%d\n", id, b.Pages, b.PublishDate)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

func parseLimit(args []string, at int) (int, error) {
	if len(args) <= at {
		return 0, nil
	}
	limit, err := strconv.Atoi(args[at])
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", args[at])
	}
	return limit, nil
}
