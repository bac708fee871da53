package server

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ragdocs/internal/ingest"
)

func (s *Server) handleHealthy(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	if s.deps.Store != nil {
		n, err := s.deps.Store.Count(c.UserContext())
		if err != nil {
			return err
		}
		resp["records"] = n
	}
	return c.JSON(resp)
}

func (s *Server) handleIngest(c *fiber.Ctx) error {
	var params IngestParams
	if len(c.Body()) > 0 {
		if err := bind(c, &params); err != nil {
			return err
		}
	}
	var (
		report ingest.Report
		err    error
	)
	if len(params.Paths) == 0 {
		report, err = s.deps.Ingester.IngestDir(c.UserContext(), s.deps.SourceDir)
	} else {
		paths, errs := resolvePaths(s.deps.SourceDir, params.Paths)
		if len(errs) > 0 {
			return NewValidationError(errs)
		}
		report, err = s.deps.Ingester.IngestFiles(c.UserContext(), paths)
	}
	if err != nil {
		return err
	}
	return c.JSON(newIngestResponse(report))
}

func (s *Server) handleRetrieve(c *fiber.Ctx) error {
	var params QueryParams
	if err := bind(c, &params); err != nil {
		return err
	}
	res, err := s.deps.Retriever.Retrieve(c.UserContext(), params.Query)
	if err != nil {
		return err
	}
	return c.JSON(newRetrieveResponse(res))
}

func (s *Server) handleAsk(c *fiber.Ctx) error {
	var params QueryParams
	if err := bind(c, &params); err != nil {
		return err
	}
	a, err := s.deps.Asker.Answer(c.UserContext(), params.Query)
	if err != nil {
		return err
	}
	return c.JSON(AskResponse{Query: a.Retrieval.Query, Answer: a.Text, Sources: a.Sources()})
}

// resolvePaths joins client paths or patterns onto root. Absolute entries and
// entries that leave root after cleaning are rejected.
func resolvePaths(root string, paths []string) ([]string, map[string]string) {
	out := make([]string, 0, len(paths))
	errs := map[string]string{}
	for i, p := range paths {
		key := fmt.Sprintf("Paths[%d]", i)
		if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
			errs[key] = "must be relative to the source directory"
			continue
		}
		clean := filepath.Clean(p)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			errs[key] = "must stay inside the source directory"
			continue
		}
		out = append(out, filepath.Join(root, clean))
	}
	return out, errs
}

// bind parses the JSON body into v and validates it.
func bind(c *fiber.Ctx, v Validater) error {
	if c.BodyParser(v) != nil {
		return ErrBadRequest()
	}
	if errs := v.Validate(); len(errs) > 0 {
		return NewValidationError(errs)
	}
	return nil
}
