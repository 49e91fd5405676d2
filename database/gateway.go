package database

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/CrowderSoup/kanban/board"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed document.schema.json
var documentSchema string

const documentSchemaURL = "kanban://document.schema.json"

var schema = jsonschema.MustCompileString(documentSchemaURL, documentSchema)

// Gateway reads and writes the board document under one storage key. It never
// returns errors: loads fall back to the bundled seed and failed writes are logged.
type Gateway struct {
	backend Backend
	key     string
	logger  zerolog.Logger
}

func NewGateway(backend Backend, key string, logger zerolog.Logger) *Gateway {
	return &Gateway{
		backend: backend,
		key:     key,
		logger:  logger.With().Str("key", key).Logger(),
	}
}

// Load returns the stored document, or the seed document when nothing is stored or
// what is stored cannot be used.
func (g *Gateway) Load() board.Document {
	data, ok, err := g.backend.Get(context.Background(), g.key)
	if err != nil {
		g.logger.Warn().Err(err).Msg("failed to load board document, using seed data")
		return board.Seed()
	}
	if !ok {
		return board.Seed()
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		g.logger.Warn().Err(err).Msg("stored board document is unreadable, using seed data")
		return board.Seed()
	}

	return doc
}

// Save overwrites the stored document.
func (g *Gateway) Save(doc board.Document) {
	data, err := json.Marshal(doc)
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to encode board document")
		return
	}

	if err := g.backend.Set(context.Background(), g.key, data); err != nil {
		g.logger.Error().Err(err).Msg("failed to save board document")
	}
}

// Clear removes the stored document.
func (g *Gateway) Clear() {
	if err := g.backend.Delete(context.Background(), g.key); err != nil {
		g.logger.Error().Err(err).Msg("failed to clear board document")
	}
}

// DecodeDocument parses data and checks it against the document schema.
func DecodeDocument(data []byte) (board.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return board.Document{}, fmt.Errorf("parse document: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return board.Document{}, fmt.Errorf("validate document: %w", err)
	}

	var doc board.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return board.Document{}, fmt.Errorf("decode document: %w", err)
	}

	return doc, nil
}
