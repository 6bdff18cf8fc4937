// Package database implements the appointment and patient lookup
// collaborators on PostgreSQL via pgx.
package database
