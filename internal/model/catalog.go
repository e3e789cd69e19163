package model

// DefaultConsultationTypes lists the consultation types offered to clients.
var DefaultConsultationTypes = []string{
	"Évaluation de profil",
	"Travailleurs qualifiés",
	"Permis d'études",
	"Regroupement familial",
	"Gens d'affaires",
	"Visa temporaire",
	"Révision de refus",
	"Citoyenneté",
	"Autre",
}

// Service is a marketed offering that pre-selects a consultation type.
type Service struct {
	ID               string `yaml:"id"`
	Title            string `yaml:"title"`
	ConsultationType string `yaml:"consultation_type"`
}

// DefaultServices lists the built-in service entry points.
var DefaultServices = []Service{
	{ID: "work-visa", Title: "Visa de Travail", ConsultationType: "Visa temporaire"},
	{ID: "student-visa", Title: "Visa Étudiant", ConsultationType: "Permis d'études"},
	{ID: "permanent-residence", Title: "Résidence Permanente", ConsultationType: "Travailleurs qualifiés"},
	{ID: "family-reunification", Title: "Regroupement Familial", ConsultationType: "Regroupement familial"},
	{ID: "entrepreneur-program", Title: "Programme des Entrepreneurs", ConsultationType: "Gens d'affaires"},
	{ID: "file-review", Title: "Révision de Dossiers", ConsultationType: "Révision de refus"},
}
