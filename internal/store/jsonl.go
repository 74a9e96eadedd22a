package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tuwlib/bibsync/internal/article"
)

// ImportArticles reads article snapshots from JSONL (one article per line)
// and upserts them into the store. Returns the number of imported articles.
func (s *Store) ImportArticles(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	count := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var a article.Article
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			return count, fmt.Errorf("line %d: parsing article: %w", lineNum, err)
		}
		if a.ID == 0 {
			return count, fmt.Errorf("line %d: article id is required", lineNum)
		}
		if a.JournalCode == "" {
			return count, fmt.Errorf("line %d: journal_code is required", lineNum)
		}

		if err := s.PutArticle(&a); err != nil {
			return count, fmt.Errorf("line %d: %w", lineNum, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading JSONL: %w", err)
	}
	return count, nil
}
