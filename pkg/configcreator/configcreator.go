// Package configcreator rebuilds a site manifest from a saved report so a
// test site can mirror the bundle layout of the reported one.
package configcreator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

// ErrInvalidReport is returned when a saved report cannot be used.
var ErrInvalidReport = errors.New("invalid report")

const keyBundle = "bundle"

// skippedEntityTypes are never rewritten even when reported.
var skippedEntityTypes = []string{
	"crop",
	"update_helper_checklist_update",
	"access_token",
	"menu_link_content",
	"redirect",
}

// Option configures a Creator.
type Option func(*Creator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Creator) {
		c.logger = logger
	}
}

// Creator applies the bundles of a report to a manifest.
type Creator struct {
	manifest  *contentmodel.Manifest
	reporting []string
	logger    *slog.Logger
}

// New creates a Creator. reporting lists the entity types the local site
// reports on; only those present in both the site and the saved report are
// rewritten.
func New(manifest *contentmodel.Manifest, reporting []string, opts ...Option) *Creator {
	c := &Creator{
		manifest:  manifest,
		reporting: reporting,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Load reads, validates and parses a saved report.
func Load(path string) (*report.Report, error) {
	data, err := report.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = report.Validate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidReport, path, err)
	}

	rep, err := report.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidReport, path, err)
	}

	return rep, nil
}

// EntityTypes returns the entity types Apply rewrites for rep, in report
// order.
func (c *Creator) EntityTypes(rep *report.Report) []string {
	out := make([]string, 0, rep.Len())

	for _, id := range rep.EntityTypes() {
		if slices.Contains(skippedEntityTypes, id) || !slices.Contains(c.reporting, id) {
			continue
		}

		if _, err := c.manifest.EntityType(id); err != nil {
			continue
		}

		out = append(out, id)
	}

	return out
}

// Apply drops the bundles of every rewritten entity type that has a bundle
// entity type and recreates the ones named in rep. Bundle IDs double as
// labels.
func (c *Creator) Apply(rep *report.Report) error {
	for _, id := range c.EntityTypes(rep) {
		et, err := c.manifest.EntityType(id)
		if err != nil {
			return err
		}

		if et.BundleEntityType == "" {
			continue
		}

		bundles := reportedBundles(rep, id)

		err = c.manifest.ReplaceBundles(id, bundles)
		if err != nil {
			return fmt.Errorf("replace bundles of %s: %w", id, err)
		}

		c.logger.Info("bundles replaced", "entity_type", id, "bundles", len(bundles))
	}

	return nil
}

// Run loads the report at path, applies it and writes the manifest to w.
func (c *Creator) Run(path string, w io.Writer) error {
	rep, err := Load(path)
	if err != nil {
		return err
	}

	err = c.Apply(rep)
	if err != nil {
		return err
	}

	_, err = c.manifest.WriteTo(w)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

func reportedBundles(rep *report.Report, entityTypeID string) []contentmodel.Bundle {
	value, ok := rep.Get(entityTypeID, keyBundle)
	if !ok {
		return nil
	}

	node, ok := value.(*report.Node)
	if !ok {
		return nil
	}

	out := make([]contentmodel.Bundle, 0, node.Len())
	for _, id := range node.Keys() {
		out = append(out, contentmodel.Bundle{ID: id, Label: id})
	}

	return out
}
