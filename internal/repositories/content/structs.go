package content

import (
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// recordTemplates gives go-sqlbuilder the struct shape of each table
var recordTemplates = [models.TableCount]models.Record{
	models.TablePerson:         models.Person{},
	models.TableGenre:          models.Genre{},
	models.TableFilmwork:       models.Filmwork{},
	models.TableGenreFilmwork:  models.GenreFilmwork{},
	models.TablePersonFilmwork: models.PersonFilmwork{},
}

func newStructs(flavor sqlbuilder.Flavor) [models.TableCount]*database.Struct {
	var structs [models.TableCount]*database.Struct
	for _, table := range models.AllTables() {
		structs[table] = database.NewStructFor(recordTemplates[table], flavor)
	}
	return structs
}
