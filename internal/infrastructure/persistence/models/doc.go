// Package models holds the gorm models behind the persistence repositories.
// Domain types stay free of gorm tags; each model converts to and from its
// domain type with ToDomain and a ...FromDomain constructor.
package models
