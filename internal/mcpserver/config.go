package mcpserver

import (
	"log"

	"github.com/DreamCats/caseindex/internal/config"
	"github.com/DreamCats/caseindex/internal/search"
	"github.com/DreamCats/caseindex/internal/store"
)

// Opener loads an engine over the current generation. The caller closes the store.
type Opener func(cfg *config.Config) (*search.Engine, *store.Store, error)

// withEngine runs fn against the engine for the current generation,
// reopening when a newer generation has been published.
func (s *Server) withEngine(fn func(indexDir string, engine *search.Engine, st *store.Store) error) error {
	indexDir, err := s.cfg.IndexDir()
	if err != nil {
		return err
	}
	gen, err := store.Current(indexDir)
	if err != nil {
		return err
	}

	s.mu.RLock()
	if s.st != nil && s.st.Generation().Name == gen.Name {
		defer s.mu.RUnlock()
		return fn(indexDir, s.engine, s.st)
	}
	s.mu.RUnlock()

	if err := s.reload(gen.Name); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st == nil {
		return store.ErrNotIndexed
	}
	return fn(indexDir, s.engine, s.st)
}

func (s *Server) reload(generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st != nil && s.st.Generation().Name == generation {
		return nil
	}
	engine, st, err := s.open(s.cfg)
	if err != nil {
		return err
	}
	if s.st != nil {
		log.Printf("[mcp] switching generation %s -> %s", s.st.Generation().Name, st.Generation().Name)
		if err := s.st.Close(); err != nil {
			log.Printf("[mcp] close previous generation: %v", err)
		}
	}
	s.engine, s.st = engine, st
	return nil
}

// Close releases the open generation, if any.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == nil {
		return nil
	}
	err := s.st.Close()
	s.engine, s.st = nil, nil
	return err
}
