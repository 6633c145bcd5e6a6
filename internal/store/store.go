package store

import (
	"database/sql"
	"fmt"

	"meetup/internal/domain"
	"meetup/internal/store/postgres"
	"meetup/internal/store/sqlite"
)

// Repositories bundles every persistence interface the application wires.
type Repositories struct {
	Users         domain.UserRepository
	Conversations domain.ConversationRepository
	Participants  domain.ParticipantRepository
	Messages      domain.MessageRepository
	Activities    domain.ActivityRepository
}

// Open opens the configured database, runs migrations, and returns the
// repository set for the chosen driver.
func Open(driver, dsn string) (*sql.DB, Repositories, error) {
	switch driver {
	case "sqlite":
		db, err := sqlite.Open(dsn)
		if err != nil {
			return nil, Repositories{}, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, Repositories{}, err
		}
		return db, Repositories{
			Users:         sqlite.NewUserRepo(db),
			Conversations: sqlite.NewConversationRepo(db),
			Participants:  sqlite.NewParticipantRepo(db),
			Messages:      sqlite.NewMessageRepo(db),
			Activities:    sqlite.NewActivityRepo(db),
		}, nil
	case "postgres":
		db, err := postgres.Open(dsn)
		if err != nil {
			return nil, Repositories{}, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, Repositories{}, err
		}
		return db, Repositories{
			Users:         postgres.NewUserRepo(db),
			Conversations: postgres.NewConversationRepo(db),
			Participants:  postgres.NewParticipantRepo(db),
			Messages:      postgres.NewMessageRepo(db),
			Activities:    postgres.NewActivityRepo(db),
		}, nil
	default:
		return nil, Repositories{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}
