// Package models contains GORM persistence models that map to database tables.
// They stay separate from domain types so the domain layer carries no ORM tags.
package models
