package predictdb

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// BuildFromCorpus populates the prediction table from a whitespace-tokenized
// corpus: every adjacent token pair becomes one (query, candidate) row whose
// weight is the pair's occurrence count. The table is rebuilt from scratch
// and sealed with a fresh digest.
func (d *DB) BuildFromCorpus(r io.Reader) (int, error) {
	counts := make(map[[2]string]int)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		tokens := strings.Fields(scanner.Text())
		for i := 0; i+1 < len(tokens); i++ {
			counts[[2]string{tokens[i], tokens[i+1]}]++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read corpus: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin build: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM predictions`); err != nil {
		return 0, fmt.Errorf("reset predictions: %w", err)
	}
	insert, err := tx.Prepare(
		`INSERT INTO predictions (query, candidate, weight) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for pair, n := range counts {
		if _, err := insert.Exec(pair[0], pair[1], float64(n)); err != nil {
			return 0, fmt.Errorf("insert %q -> %q: %w", pair[0], pair[1], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit build: %w", err)
	}

	if err := d.sealDigest(); err != nil {
		return 0, fmt.Errorf("seal digest: %w", err)
	}
	return len(counts), nil
}
