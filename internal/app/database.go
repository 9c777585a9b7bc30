package app

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/pkg/database"
	"github.com/shashiranjanraj/catalog/pkg/migration"
)

// Database is the connection selected by DB_DRIVER. Exactly one of Gorm
// and Mongo is set.
type Database struct {
	Driver string
	Gorm   *gorm.DB
	Mongo  *mongo.Database
}

// OpenDatabase connects to the configured backend. It never changes schema
// or data.
func OpenDatabase(ctx context.Context) (*Database, error) {
	driver := config.DatabaseDriver()
	if driver == "mongo" {
		client, err := database.ConnectMongo(ctx, config.MongoURI())
		if err != nil {
			return nil, err
		}
		return &Database{Driver: driver, Mongo: client.Database(config.MongoDB())}, nil
	}

	db, err := database.OpenGorm(driver, config.DatabaseDSN(), database.DefaultPool())
	if err != nil {
		return nil, err
	}
	return &Database{Driver: driver, Gorm: db}, nil
}

// Stores returns the repositories of the open backend.
func (d *Database) Stores() repositories.Stores {
	if d.Mongo != nil {
		return repositories.NewMongoStores(d.Mongo)
	}
	return repositories.NewGormStores(d.Gorm)
}

// RequireGorm fails for the document backend, which has no migrations.
func (d *Database) RequireGorm() (*gorm.DB, error) {
	if d.Gorm == nil {
		return nil, fmt.Errorf("DB_DRIVER=%s has no relational migrations", d.Driver)
	}
	return d.Gorm, nil
}

// Ping checks the connection.
func (d *Database) Ping(ctx context.Context) error {
	if d.Mongo != nil {
		return d.Mongo.Client().Ping(ctx, nil)
	}
	sqlDB, err := d.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Reset destroys every table or collection and recreates the schema.
func (d *Database) Reset(ctx context.Context, out io.Writer) error {
	if d.Mongo != nil {
		err := database.ResetMongo(ctx, d.Mongo,
			repositories.CollectionUsers,
			repositories.CollectionProducts,
			repositories.CollectionImages,
			repositories.CollectionFavourites,
		)
		if err != nil {
			return err
		}
		return repositories.EnsureMongoIndexes(ctx, d.Mongo)
	}
	return migration.New(d.Gorm).WithOutput(out).Reset()
}

// Close releases the connection.
func (d *Database) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if d.Mongo != nil {
		return d.Mongo.Client().Disconnect(ctx)
	}
	if d.Gorm != nil {
		return database.CloseGorm(d.Gorm)
	}
	return nil
}
