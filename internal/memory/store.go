// Package memory provides the assistant's long-term memory: recent
// conversation turns and learned facts, with optional embedding-ranked
// recall.
package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/embeddings"
)

// maxConversations bounds the conversation ring. Older turns are
// pruned on insert.
const maxConversations = 200

// Embedder generates a vector for a piece of text. Satisfied by
// *embeddings.Client.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Turn is one user/assistant exchange.
type Turn struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	CreatedAt time.Time `json:"created_at"`
}

// Fact is a piece of learned long-term memory.
type Fact struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"` // preference, personal, context, ...
	Content    string    `json:"content"`
	Importance float64   `json:"importance"` // 0-1
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`

	embedding []float32
}

// Store manages memory persistence.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	embedder Embedder // nil disables vector recall
}

// NewStore creates a memory store with SQLite backend. The embedder is
// optional; without one, Recall falls back to substring matching.
func NewStore(dbPath string, logger *slog.Logger, embedder Embedder) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, logger: logger, embedder: embedder}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_text TEXT NOT NULL,
			assistant_text TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			importance REAL NOT NULL DEFAULT 0.5,
			embedding BLOB,
			created_at TEXT NOT NULL,
			accessed_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_facts_category ON facts(category);
		CREATE INDEX IF NOT EXISTS idx_facts_accessed ON facts(accessed_at DESC);
	`)
	return err
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// StoreConversation appends a user/assistant exchange to the ring,
// pruning the oldest turns past the cap.
func (s *Store) StoreConversation(user, assistant string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, user_text, assistant_text, created_at)
		VALUES (?, ?, ?, ?)
	`, newID(), user, assistant, now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	_, err = s.db.Exec(`
		DELETE FROM conversations WHERE id NOT IN (
			SELECT id FROM conversations ORDER BY created_at DESC LIMIT ?
		)
	`, maxConversations)
	if err != nil {
		return fmt.Errorf("prune conversations: %w", err)
	}
	return nil
}

// RecentTurns returns the most recent exchanges, oldest first, ready to
// replay as chat history.
func (s *Store) RecentTurns(limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, user_text, assistant_text, created_at
		FROM conversations ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var created string
		if err := rows.Scan(&turn.ID, &turn.User, &turn.Assistant, &created); err != nil {
			return nil, err
		}
		turn.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Remember stores a fact. The embedding is computed best-effort; a
// failed embedding call degrades that fact to substring recall only.
func (s *Store) Remember(ctx context.Context, category, content string, importance float64) (*Fact, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty fact content")
	}
	if category == "" {
		category = "general"
	}
	if importance <= 0 || importance > 1 {
		importance = 0.5
	}

	now := time.Now().UTC()
	fact := &Fact{
		ID:         newID(),
		Category:   category,
		Content:    content,
		Importance: importance,
		CreatedAt:  now,
		AccessedAt: now,
	}

	var blob []byte
	if s.embedder != nil {
		vec, err := s.embedder.Generate(ctx, content)
		if err != nil {
			s.logger.Debug("embedding failed, storing fact without vector", "error", err)
		} else {
			fact.embedding = vec
			blob = encodeVector(vec)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO facts (id, category, content, importance, embedding, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fact.ID, fact.Category, fact.Content, fact.Importance, blob,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert fact: %w", err)
	}

	return fact, nil
}

// Recall finds facts relevant to a query. With an embedder configured
// the results are ranked by cosine similarity; otherwise (or when the
// query embedding fails) it falls back to a substring match. Category
// filters when non-empty.
func (s *Store) Recall(ctx context.Context, query, category string, limit int) ([]*Fact, error) {
	if limit <= 0 {
		limit = 5
	}

	if s.embedder != nil {
		queryVec, err := s.embedder.Generate(ctx, query)
		if err == nil {
			facts, err := s.recallByVector(queryVec, category, limit)
			if err == nil && len(facts) > 0 {
				s.touch(facts)
				return facts, nil
			}
		} else {
			s.logger.Debug("query embedding failed, falling back to substring recall", "error", err)
		}
	}

	facts, err := s.recallBySubstring(query, category, limit)
	if err != nil {
		return nil, err
	}
	s.touch(facts)
	return facts, nil
}

func (s *Store) recallByVector(queryVec []float32, category string, limit int) ([]*Fact, error) {
	facts, err := s.listFacts(category, true)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(facts))
	for i, f := range facts {
		vectors[i] = f.embedding
	}

	ranked := make([]*Fact, 0, limit)
	for _, idx := range embeddings.TopK(queryVec, vectors, limit) {
		// Ignore facts with no meaningful similarity to the query.
		if embeddings.CosineSimilarity(queryVec, vectors[idx]) < 0.3 {
			continue
		}
		ranked = append(ranked, facts[idx])
	}
	return ranked, nil
}

func (s *Store) recallBySubstring(query, category string, limit int) ([]*Fact, error) {
	pattern := "%" + query + "%"
	sqlQuery := `
		SELECT id, category, content, importance, embedding, created_at, accessed_at
		FROM facts WHERE content LIKE ?`
	args := []any{pattern}
	if category != "" {
		sqlQuery += ` AND category = ?`
		args = append(args, category)
	}
	sqlQuery += ` ORDER BY importance DESC, accessed_at DESC LIMIT ?`
	args = append(args, limit)

	return s.queryFacts(sqlQuery, args...)
}

// listFacts loads facts, optionally only those with embeddings.
func (s *Store) listFacts(category string, withVectors bool) ([]*Fact, error) {
	sqlQuery := `
		SELECT id, category, content, importance, embedding, created_at, accessed_at
		FROM facts WHERE 1=1`
	var args []any
	if category != "" {
		sqlQuery += ` AND category = ?`
		args = append(args, category)
	}
	if withVectors {
		sqlQuery += ` AND embedding IS NOT NULL`
	}

	return s.queryFacts(sqlQuery, args...)
}

// ListFacts returns all facts, optionally filtered by category.
func (s *Store) ListFacts(category string) ([]*Fact, error) {
	return s.listFacts(category, false)
}

// DeleteFact removes a fact by ID.
func (s *Store) DeleteFact(id string) error {
	result, err := s.db.Exec(`DELETE FROM facts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("fact not found: %s", id)
	}
	return nil
}

// Stats returns memory statistics.
func (s *Store) Stats() map[string]any {
	var turns, facts int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&turns)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM facts`).Scan(&facts)

	cats := make(map[string]int)
	rows, _ := s.db.Query(`SELECT category, COUNT(*) FROM facts GROUP BY category`)
	if rows != nil {
		defer rows.Close()
		for rows.Next() {
			var cat string
			var count int
			if err := rows.Scan(&cat, &count); err != nil {
				continue
			}
			cats[cat] = count
		}
	}

	return map[string]any{
		"conversations": turns,
		"facts":         facts,
		"categories":    cats,
	}
}

func (s *Store) queryFacts(sqlQuery string, args ...any) ([]*Fact, error) {
	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var facts []*Fact
	for rows.Next() {
		var f Fact
		var blob []byte
		var created, accessed string
		if err := rows.Scan(&f.ID, &f.Category, &f.Content, &f.Importance, &blob, &created, &accessed); err != nil {
			return nil, err
		}
		f.embedding = decodeVector(blob)
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		f.AccessedAt, _ = time.Parse(time.RFC3339Nano, accessed)
		facts = append(facts, &f)
	}
	return facts, rows.Err()
}

// touch bumps accessed_at for recalled facts.
func (s *Store) touch(facts []*Fact) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, f := range facts {
		_, _ = s.db.Exec(`UPDATE facts SET accessed_at = ? WHERE id = ?`, now, f.ID)
	}
}

// encodeVector packs a float32 slice into a little-endian blob.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
