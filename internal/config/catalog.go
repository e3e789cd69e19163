package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"firmament/internal/model"
	"firmament/internal/pricing"
)

// Catalog holds what the consultancy sells and at which price.
type Catalog struct {
	ConsultationTypes []string        `yaml:"consultation_types"`
	Services          []model.Service `yaml:"services"`
	Prices            pricing.Table   `yaml:"prices"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		ConsultationTypes: append([]string(nil), model.DefaultConsultationTypes...),
		Services:          append([]model.Service(nil), model.DefaultServices...),
		Prices:            pricing.Default(),
	}
}

// LoadCatalog reads a catalog file. An empty path yields the defaults;
// sections missing from the file keep their defaults.
func LoadCatalog(path string) (*Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.ConsultationTypes) > 0 {
		cat.ConsultationTypes = file.ConsultationTypes
	}
	if len(file.Services) > 0 {
		cat.Services = file.Services
	}
	if len(file.Prices) > 0 {
		cat.Prices = file.Prices
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Validate checks the price table and that every service points to a
// known consultation type.
func (c *Catalog) Validate() error {
	var errs []error
	if err := c.Prices.Validate(); err != nil {
		errs = append(errs, err)
	}
	known := make(map[string]bool, len(c.ConsultationTypes))
	for _, t := range c.ConsultationTypes {
		if known[t] {
			errs = append(errs, fmt.Errorf("duplicate consultation type %q", t))
		}
		known[t] = true
	}
	for _, s := range c.Services {
		if !known[s.ConsultationType] {
			errs = append(errs, fmt.Errorf("service %s: unknown consultation type %q", s.ID, s.ConsultationType))
		}
	}
	return errors.Join(errs...)
}

// Service finds a service by ID.
func (c *Catalog) Service(id string) (model.Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return model.Service{}, false
}
