package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"closet-go/internal/closet"
	"closet-go/internal/config"
	"closet-go/internal/database"
	"closet-go/internal/encryption"
	"closet-go/internal/gateway"
	"closet-go/internal/model"
	"closet-go/internal/sessionstore"
)

// Options adjust how a ClosetApp runs.
type Options struct {
	// Verbose copies log output to stderr.
	Verbose bool
}

// ClosetApp is the application layer between the CLI and the closet
// package. It constructs all dependencies from config, exposes high-level
// operations that accept raw CLI input, and manages the DB lifecycle on Close.
type ClosetApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	encryptor encryption.Encryptor
	gateway   gateway.Gateway
	session   *closet.SessionState
	store     *closet.Store
	clock     closet.Clock
	logger    closet.Logger
	op        *CommandOperation
	logFile   *os.File
}

// NewClosetApp creates a fully wired ClosetApp from the given config and
// restores any persisted session.
// operation identifies the CLI command being run (e.g. "Login", "Upload").
// The caller must call Close when done.
func NewClosetApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*ClosetApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	db, err := database.NewDatabaseFromConfig(cfg.Session)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	a := &ClosetApp{
		cfg:     cfg,
		db:      db,
		clock:   closet.RealClock{},
		logger:  logger,
		op:      NewCommandOperation(operation, ""),
		logFile: logFile,
	}

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *ClosetApp) wire(ctx context.Context) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	storage, err := sessionstore.NewStorageFromConfig(a.cfg.Session, a.db, enc)
	if err != nil {
		return fmt.Errorf("creating session storage: %w", err)
	}

	gw, err := gateway.NewGatewayFromConfig(a.cfg.Gateway, a.cfg.Upload, a.clock, closet.UUIDGenerator{}, a.logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	a.gateway = gw

	a.session = closet.NewSessionState(storage, gw, a.clock, a.logger)
	gw.SetCredentials(a.session)
	a.session.OnEnd(func(reason closet.EndReason) {
		a.logger.Info("session ended", "reason", reason.String())
	})
	if err := a.session.Initialize(ctx); err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	a.store = closet.NewStore(gw, a.session, a.logger)
	return nil
}

// persistOperation records the operation in the database, giving it an
// auto-increment ID. Only called by commands that change state.
func (a *ClosetApp) persistOperation(ctx context.Context, parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(ctx, a.op.Operation, parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Signup registers a new account and signs in as it.
func (a *ClosetApp) Signup(ctx context.Context, email, password, fullName string) error {
	if err := a.persistOperation(ctx, email); err != nil {
		return err
	}
	return a.op.Fail(a.session.Signup(ctx, closet.Registration{Email: email, Password: password, FullName: fullName}))
}

// Login signs in with email and password.
func (a *ClosetApp) Login(ctx context.Context, email, password string) error {
	if err := a.persistOperation(ctx, email); err != nil {
		return err
	}
	return a.op.Fail(a.session.Login(ctx, closet.Credentials{Email: email, Password: password}))
}

// Logout ends the current session. Logging out while signed out succeeds.
func (a *ClosetApp) Logout(ctx context.Context) error {
	if err := a.persistOperation(ctx, ""); err != nil {
		return err
	}
	return a.op.Fail(a.session.Logout(ctx))
}

// WhoAmI returns the active session, if any.
func (a *ClosetApp) WhoAmI() (model.Session, bool) {
	return a.session.Current()
}

// List loads the collection and projects it through criteria.
func (a *ClosetApp) List(ctx context.Context, criteria model.FilterCriteria) (closet.View, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return closet.View{}, err
	}
	return a.store.View(criteria), nil
}

// Search runs a server-side search.
func (a *ClosetApp) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Item, error) {
	return a.store.Search(ctx, criteria)
}

// Upload reads the image at rawPath and adds it to the collection.
func (a *ClosetApp) Upload(ctx context.Context, rawPath string, meta model.ItemMetadata) (*model.Item, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if err := a.persistOperation(ctx, p); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, a.op.Fail(fmt.Errorf("reading image: %w", err))
	}
	if err := a.ensureLoaded(ctx); err != nil {
		return nil, a.op.Fail(err)
	}
	item, err := a.store.Upload(ctx, data, meta)
	return item, a.op.Fail(err)
}

// Remove deletes the item with the given id.
func (a *ClosetApp) Remove(ctx context.Context, id string) error {
	if err := a.persistOperation(ctx, id); err != nil {
		return err
	}
	if err := a.ensureLoaded(ctx); err != nil {
		return a.op.Fail(err)
	}
	return a.op.Fail(a.store.Remove(ctx, id))
}

// ToggleFavorite flips the favorite flag of the item with the given id and
// returns the new value.
func (a *ClosetApp) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return false, err
	}
	if err := a.ensureLoaded(ctx); err != nil {
		return false, a.op.Fail(err)
	}
	fav, err := a.store.ToggleFavorite(ctx, id)
	return fav, a.op.Fail(err)
}

// History returns the most recent recorded operations.
func (a *ClosetApp) History(ctx context.Context, limit int) ([]*model.Operation, error) {
	return a.db.ListOperations(ctx, limit)
}

func (a *ClosetApp) ensureLoaded(ctx context.Context) error {
	if a.store.State() == closet.StateReady {
		return nil
	}
	return a.store.Load(ctx)
}

// Close finalizes the operation record and closes all resources.
func (a *ClosetApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(context.Background(), a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// InitConfig writes a fresh config file at path and creates the session
// encryption key if the configured encryptor has none yet.
func InitConfig(path string, cfg *config.Config) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}

	if err := config.Init(path, cfg); err != nil {
		return err
	}

	if enc.IsConfigured() {
		return nil
	}
	if err := enc.Setup(); err != nil {
		return fmt.Errorf("creating encryption key: %w", err)
	}
	return nil
}
