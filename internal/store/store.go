// Package store persists article snapshots, external identifiers and
// DataCite state in a SQLite database. It implements article.Source and
// article.IdentifierStore for the OAI handler and the sync state machine.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tuwlib/bibsync/internal/article"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and initializes) a store at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY,
			journal_code TEXT NOT NULL,
			title TEXT NOT NULL,
			subtitle TEXT NOT NULL DEFAULT '',
			title_alt TEXT NOT NULL DEFAULT '',
			subtitle_alt TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			abstract_alt TEXT NOT NULL DEFAULT '',
			license_short TEXT NOT NULL DEFAULT '',
			license_name TEXT NOT NULL DEFAULT '',
			license_url TEXT NOT NULL DEFAULT '',
			issue_year INTEGER NOT NULL DEFAULT 0,
			issue_volume INTEGER NOT NULL DEFAULT 0,
			issue_label TEXT NOT NULL DEFAULT '',
			page_numbers TEXT NOT NULL DEFAULT '',
			date_published TEXT NOT NULL DEFAULT '',
			datacite_state TEXT NOT NULL DEFAULT '',
			galley_path TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS authors (
			article_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			orcid TEXT NOT NULL DEFAULT '',
			is_correspondence INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (article_id, position)
		);

		CREATE TABLE IF NOT EXISTS keywords (
			article_id INTEGER NOT NULL,
			lang TEXT NOT NULL,
			position INTEGER NOT NULL,
			keyword TEXT NOT NULL,
			PRIMARY KEY (article_id, lang, position)
		);

		CREATE TABLE IF NOT EXISTS identifiers (
			article_id INTEGER NOT NULL,
			id_type TEXT NOT NULL,
			identifier TEXT NOT NULL,
			PRIMARY KEY (article_id, id_type)
		);

		CREATE INDEX IF NOT EXISTS idx_articles_journal ON articles(journal_code);
		CREATE INDEX IF NOT EXISTS idx_identifiers_value ON identifiers(id_type, identifier);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// PutArticle inserts or replaces an article snapshot including authors,
// keywords and identifiers.
func (s *Store) PutArticle(a *article.Article) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var licShort, licName, licURL string
	if a.License != nil {
		licShort, licName, licURL = a.License.ShortName, a.License.Name, a.License.URL
	}
	var issueYear, issueVolume int
	var issueLabel string
	if a.PrimaryIssue != nil {
		issueYear, issueVolume, issueLabel = a.PrimaryIssue.Year, a.PrimaryIssue.Volume, a.PrimaryIssue.Label
	}
	var datePublished string
	if !a.DatePublished.IsZero() {
		datePublished = a.DatePublished.UTC().Format(time.RFC3339)
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO articles (
			id, journal_code, title, subtitle, title_alt, subtitle_alt,
			language, abstract, abstract_alt,
			license_short, license_name, license_url,
			issue_year, issue_volume, issue_label,
			page_numbers, date_published, datacite_state, galley_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.JournalCode, a.Title, a.Subtitle, a.TitleAlt, a.SubtitleAlt,
		a.Language, a.Abstract, a.AbstractAlt,
		licShort, licName, licURL,
		issueYear, issueVolume, issueLabel,
		a.PageNumbers, datePublished, string(a.DataCiteState), a.GalleyPath)
	if err != nil {
		return fmt.Errorf("inserting article: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM authors WHERE article_id = ?`, a.ID); err != nil {
		return fmt.Errorf("clearing authors: %w", err)
	}
	for i, au := range a.Authors {
		_, err := tx.Exec(`
			INSERT INTO authors (article_id, position, first_name, last_name, orcid, is_correspondence)
			VALUES (?, ?, ?, ?, ?, ?)
		`, a.ID, i, au.FirstName, au.LastName, au.ORCID, au.IsCorrespondence)
		if err != nil {
			return fmt.Errorf("inserting author: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM keywords WHERE article_id = ?`, a.ID); err != nil {
		return fmt.Errorf("clearing keywords: %w", err)
	}
	for lang, kws := range map[string][]string{"en": a.KeywordsEN, "de": a.KeywordsDE} {
		for i, kw := range kws {
			_, err := tx.Exec(`
				INSERT INTO keywords (article_id, lang, position, keyword)
				VALUES (?, ?, ?, ?)
			`, a.ID, lang, i, kw)
			if err != nil {
				return fmt.Errorf("inserting keyword: %w", err)
			}
		}
	}

	for idType, value := range a.Identifiers {
		if value == "" {
			continue
		}
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO identifiers (article_id, id_type, identifier)
			VALUES (?, ?, ?)
		`, a.ID, idType, value)
		if err != nil {
			return fmt.Errorf("inserting identifier: %w", err)
		}
	}

	return tx.Commit()
}

// Article returns the article with the given id, or (nil, nil) when it does
// not exist.
func (s *Store) Article(id int64) (*article.Article, error) {
	a, err := s.scanArticle(s.db.QueryRow(`
		SELECT id, journal_code, title, subtitle, title_alt, subtitle_alt,
			language, abstract, abstract_alt,
			license_short, license_name, license_url,
			issue_year, issue_volume, issue_label,
			page_numbers, date_published, datacite_state, galley_path
		FROM articles WHERE id = ?
	`, id))
	if err != nil || a == nil {
		return a, err
	}
	if err := s.loadDetails(a); err != nil {
		return nil, err
	}
	return a, nil
}

// ArticleByDOI returns the published article of a journal carrying the
// given DOI, or (nil, nil) when none matches.
func (s *Store) ArticleByDOI(journalCode, doi string) (*article.Article, error) {
	a, err := s.scanArticle(s.db.QueryRow(`
		SELECT a.id, a.journal_code, a.title, a.subtitle, a.title_alt, a.subtitle_alt,
			a.language, a.abstract, a.abstract_alt,
			a.license_short, a.license_name, a.license_url,
			a.issue_year, a.issue_volume, a.issue_label,
			a.page_numbers, a.date_published, a.datacite_state, a.galley_path
		FROM articles a
		JOIN identifiers i ON i.article_id = a.id AND i.id_type = 'doi'
		WHERE a.journal_code = ? AND i.identifier = ? AND a.date_published != ''
	`, journalCode, doi))
	if err != nil || a == nil {
		return a, err
	}
	if err := s.loadDetails(a); err != nil {
		return nil, err
	}
	return a, nil
}

// PublishedWithDOI lists published articles of a journal carrying a DOI,
// with inclusive publication-date bounds. A zero time leaves that side
// unbounded.
func (s *Store) PublishedWithDOI(journalCode string, from, until time.Time) ([]*article.Article, error) {
	query := `
		SELECT a.id, a.journal_code, a.title, a.subtitle, a.title_alt, a.subtitle_alt,
			a.language, a.abstract, a.abstract_alt,
			a.license_short, a.license_name, a.license_url,
			a.issue_year, a.issue_volume, a.issue_label,
			a.page_numbers, a.date_published, a.datacite_state, a.galley_path
		FROM articles a
		JOIN identifiers i ON i.article_id = a.id AND i.id_type = 'doi'
		WHERE a.journal_code = ? AND a.date_published != ''
	`
	args := []any{journalCode}
	if !from.IsZero() {
		query += ` AND a.date_published >= ?`
		args = append(args, from.UTC().Format(time.RFC3339))
	}
	if !until.IsZero() {
		query += ` AND a.date_published <= ?`
		args = append(args, until.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY a.id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying published articles: %w", err)
	}
	defer rows.Close()

	var articles []*article.Article
	for rows.Next() {
		a, err := s.scanArticleRow(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range articles {
		if err := s.loadDetails(a); err != nil {
			return nil, err
		}
	}
	return articles, nil
}

// ReplaceIdentifier deletes any existing identifier of the given type for
// the article and inserts the new value. Stale identifiers must not linger
// when a DOI value changes between registrations.
func (s *Store) ReplaceIdentifier(articleID int64, idType, value string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM identifiers WHERE article_id = ? AND id_type = ?`, articleID, idType); err != nil {
		return fmt.Errorf("deleting identifier: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO identifiers (article_id, id_type, identifier) VALUES (?, ?, ?)`,
		articleID, idType, value); err != nil {
		return fmt.Errorf("inserting identifier: %w", err)
	}
	return tx.Commit()
}

// DeleteIdentifier removes all identifiers of the given type for the article.
func (s *Store) DeleteIdentifier(articleID int64, idType string) error {
	_, err := s.db.Exec(`DELETE FROM identifiers WHERE article_id = ? AND id_type = ?`, articleID, idType)
	if err != nil {
		return fmt.Errorf("deleting identifier: %w", err)
	}
	return nil
}

// SetDataCiteState updates the article's DOI lifecycle state.
func (s *Store) SetDataCiteState(articleID int64, state article.DataCiteState) error {
	res, err := s.db.Exec(`UPDATE articles SET datacite_state = ? WHERE id = ?`, string(state), articleID)
	if err != nil {
		return fmt.Errorf("updating datacite state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("article %d not found", articleID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanArticle(row *sql.Row) (*article.Article, error) {
	a, err := s.scanArticleRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *Store) scanArticleRow(row rowScanner) (*article.Article, error) {
	var a article.Article
	var licShort, licName, licURL string
	var issueYear, issueVolume int
	var issueLabel, datePublished, state string

	err := row.Scan(&a.ID, &a.JournalCode, &a.Title, &a.Subtitle, &a.TitleAlt, &a.SubtitleAlt,
		&a.Language, &a.Abstract, &a.AbstractAlt,
		&licShort, &licName, &licURL,
		&issueYear, &issueVolume, &issueLabel,
		&a.PageNumbers, &datePublished, &state, &a.GalleyPath)
	if err != nil {
		return nil, err
	}

	if licShort != "" || licName != "" {
		a.License = &article.License{ShortName: licShort, Name: licName, URL: licURL}
	}
	if issueYear != 0 || issueLabel != "" {
		a.PrimaryIssue = &article.Issue{Year: issueYear, Volume: issueVolume, Label: issueLabel}
	}
	if datePublished != "" {
		t, err := time.Parse(time.RFC3339, datePublished)
		if err != nil {
			return nil, fmt.Errorf("parsing date_published: %w", err)
		}
		a.DatePublished = t
	}
	a.DataCiteState = article.DataCiteState(state)
	return &a, nil
}

func (s *Store) loadDetails(a *article.Article) error {
	rows, err := s.db.Query(`
		SELECT first_name, last_name, orcid, is_correspondence
		FROM authors WHERE article_id = ? ORDER BY position
	`, a.ID)
	if err != nil {
		return fmt.Errorf("querying authors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var au article.FrozenAuthor
		if err := rows.Scan(&au.FirstName, &au.LastName, &au.ORCID, &au.IsCorrespondence); err != nil {
			return err
		}
		a.Authors = append(a.Authors, au)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	kwRows, err := s.db.Query(`
		SELECT lang, keyword FROM keywords WHERE article_id = ? ORDER BY lang, position
	`, a.ID)
	if err != nil {
		return fmt.Errorf("querying keywords: %w", err)
	}
	defer kwRows.Close()
	for kwRows.Next() {
		var lang, kw string
		if err := kwRows.Scan(&lang, &kw); err != nil {
			return err
		}
		switch lang {
		case "de":
			a.KeywordsDE = append(a.KeywordsDE, kw)
		default:
			a.KeywordsEN = append(a.KeywordsEN, kw)
		}
	}
	if err := kwRows.Err(); err != nil {
		return err
	}

	idRows, err := s.db.Query(`
		SELECT id_type, identifier FROM identifiers WHERE article_id = ?
	`, a.ID)
	if err != nil {
		return fmt.Errorf("querying identifiers: %w", err)
	}
	defer idRows.Close()
	a.Identifiers = make(map[string]string)
	for idRows.Next() {
		var idType, value string
		if err := idRows.Scan(&idType, &value); err != nil {
			return err
		}
		a.Identifiers[idType] = value
	}
	return idRows.Err()
}
