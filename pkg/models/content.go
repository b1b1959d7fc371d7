package models

import (
	"github.com/google/uuid"
)

// DefaultFilmworkType is used when a film work has no type
const DefaultFilmworkType = "movie"

// Person is a member of a film crew or cast
type Person struct {
	ID        uuid.UUID `db:"id" json:"id" validate:"required"`
	FullName  string    `db:"full_name" json:"full_name"`
	CreatedAt Timestamp `db:"created_at" json:"created_at"`
	UpdatedAt Timestamp `db:"updated_at" json:"updated_at"`
}

func (Person) Table() Table          { return TablePerson }
func (p Person) RecordID() uuid.UUID { return p.ID }

// Genre is a film genre
type Genre struct {
	ID          uuid.UUID `db:"id" json:"id" validate:"required"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   Timestamp `db:"created_at" json:"created_at"`
	UpdatedAt   Timestamp `db:"updated_at" json:"updated_at"`
}

func (Genre) Table() Table          { return TableGenre }
func (g Genre) RecordID() uuid.UUID { return g.ID }

// Filmwork is a movie or a tv show
type Filmwork struct {
	ID           uuid.UUID  `db:"id" json:"id" validate:"required"`
	Title        string     `db:"title" json:"title"`
	Description  *string    `db:"description" json:"description,omitempty"`
	CreationDate *Timestamp `db:"creation_date" json:"creation_date,omitempty"`
	FilePath     *string    `db:"file_path" json:"file_path,omitempty"`
	Rating       *float64   `db:"rating" json:"rating,omitempty"`
	Type         string     `db:"type" json:"type"`
	CreatedAt    Timestamp  `db:"created_at" json:"created_at"`
	UpdatedAt    Timestamp  `db:"updated_at" json:"updated_at"`
}

func (Filmwork) Table() Table          { return TableFilmwork }
func (f Filmwork) RecordID() uuid.UUID { return f.ID }

// GenreFilmwork links a film work to one of its genres
type GenreFilmwork struct {
	ID         uuid.UUID `db:"id" json:"id" validate:"required"`
	FilmworkID uuid.UUID `db:"film_work_id" json:"film_work_id" validate:"required"`
	GenreID    uuid.UUID `db:"genre_id" json:"genre_id" validate:"required"`
	CreatedAt  Timestamp `db:"created_at" json:"created_at"`
}

func (GenreFilmwork) Table() Table          { return TableGenreFilmwork }
func (g GenreFilmwork) RecordID() uuid.UUID { return g.ID }

// PersonFilmwork links a person to a film work with the role they had in it
type PersonFilmwork struct {
	ID         uuid.UUID `db:"id" json:"id" validate:"required"`
	Role       string    `db:"role" json:"role"`
	FilmworkID uuid.UUID `db:"film_work_id" json:"film_work_id" validate:"required"`
	PersonID   uuid.UUID `db:"person_id" json:"person_id" validate:"required"`
	CreatedAt  Timestamp `db:"created_at" json:"created_at"`
}

func (PersonFilmwork) Table() Table          { return TablePersonFilmwork }
func (p PersonFilmwork) RecordID() uuid.UUID { return p.ID }
