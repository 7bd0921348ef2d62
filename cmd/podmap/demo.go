package main

import (
	"fmt"
	"io"

	"github.com/eigerco/podmap/pkg/podmap"
)

// runDemo adds two books on every run, bumps the page count of the first,
// prints the pages of every stored book and removes the second one again.
func runDemo(books *podmap.Map[uint64, Book], out io.Writer, sync bool) error {
	next := uint64(1)
	last, ok, err := books.Last()
	if err != nil {
		return err
	}
	if ok {
		next = last + 1
	}

	first, second := next, next+1
	if err := books.Store(first, Book{Pages: 3, PublishDate: 11}, sync); err != nil {
		return err
	}
	if err := books.Store(second, Book{Pages: 40, PublishDate: 12}, sync); err != nil {
		return err
	}

	b, err := books.Fetch(first)
	if err != nil {
		return err
	}
	b.Pages++
	if err := books.Store(first, b, sync); err != nil {
		return err
	}

	c, err := books.Begin()
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck

	for ; c.Valid(); c.Next() {
		v, err := c.Value()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v.Pages)
	}
	if err := c.Err(); err != nil {
		return err
	}

	return books.Remove(second, sync)
}
