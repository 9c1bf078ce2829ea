package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/schema"
	"github.com/neogan74/savekit/internal/telemetry"
	"github.com/neogan74/savekit/internal/watch"
)

// MigrateOutcome combines both validation passes and the migration.
type MigrateOutcome struct {
	Validation schema.ValidationResult
	Migration  schema.MigrationResult
	Document   *document.Node
}

// ValidateAndMigrate validates doc at declaredVersion and, when it has no
// hard errors and autoMigrate is set, migrates it to targetVersion and
// validates the result, merging both passes. Empty versions default to the
// document's own version key (or the configured default) and the
// configured target. The returned document is never the caller's doc
// when a migration ran.
func (e *Engine) ValidateAndMigrate(ctx context.Context, doc *document.Node, declaredVersion, targetVersion string, autoMigrate bool) (out MigrateOutcome, err error) {
	log := e.log.WithOperation("migrate")
	if declaredVersion == "" {
		declaredVersion = e.DeclaredVersion(doc)
	}
	if targetVersion == "" {
		targetVersion = e.cfg.TargetVersion
	}

	_, span := telemetry.StartSpan(ctx, e.tracer, "engine.ValidateAndMigrate", e.cfg.Path,
		attribute.String("savekit.from", declaredVersion),
		attribute.String("savekit.to", targetVersion))
	defer func() { telemetry.EndSpan(span, err) }()

	out.Document = doc
	out.Validation = e.registry.Validate(doc, declaredVersion)
	out.Migration = schema.MigrationResult{
		Success:     true,
		FromVersion: declaredVersion,
		ToVersion:   declaredVersion,
	}

	if !out.Validation.IsValid {
		out.Migration.Success = false
		out.Migration.Messages = []string{"Validation failed, migration skipped"}
		log.Warn("Document failed validation",
			logger.String("version", declaredVersion),
			logger.Strings("errors", out.Validation.Errors))
		return out, &Error{
			Kind: KindValidation,
			Op:   "validate",
			Err:  fmt.Errorf("%w: %d errors", ErrValidationFailed, len(out.Validation.Errors)),
		}
	}

	if !autoMigrate || declaredVersion == targetVersion {
		return out, nil
	}

	if e.cfg.BackupBeforeMigrate && e.cfg.Path != "" && e.store.Exists(e.cfg.Path) {
		unlock := e.lock(e.cfg.Path)
		_, berr := e.store.CreateBackup(e.cfg.Path)
		unlock()
		if berr != nil {
			log.Warn("Pre-migration backup failed, continuing", logger.Error(berr))
		}
	}

	migrated, result := e.registry.Migrate(doc, declaredVersion, targetVersion)
	out.Document = migrated
	out.Migration = result

	if !result.Success {
		ev := e.event(watch.EventMigrationFailed, e.cfg.Path, nil)
		ev.Version = result.ToVersion
		ev.Message = lastMessage(result.Messages)
		e.notify(ev)
		out.Validation.AddError(fmt.Sprintf("Migration from %s to %s failed at %s: %s",
			declaredVersion, targetVersion, result.ToVersion, ev.Message))
		return out, &Error{
			Kind: KindMigration,
			Op:   "migrate",
			Err:  fmt.Errorf("%w: %s -> %s stopped at %s", ErrMigrationFailed, declaredVersion, targetVersion, result.ToVersion),
		}
	}

	if result.Applied > 0 || result.ToVersion != declaredVersion {
		out.Validation.Merge(e.registry.Validate(migrated, result.ToVersion))
	}

	if result.Applied > 0 {
		ev := e.event(watch.EventMigrated, e.cfg.Path, nil)
		ev.Version = result.ToVersion
		ev.Message = fmt.Sprintf("%s -> %s", declaredVersion, result.ToVersion)
		e.notify(ev)
	}

	if !out.Validation.IsValid {
		return out, &Error{
			Kind: KindValidation,
			Op:   "validate",
			Err:  fmt.Errorf("%w after migration to %s", ErrValidationFailed, result.ToVersion),
		}
	}
	return out, nil
}

// LoadAndMigrate loads the configured path and brings the document to the
// target version when auto-migration is enabled.
func (e *Engine) LoadAndMigrate(ctx context.Context, loadFromCloudIfMissing bool) (LoadResult, MigrateOutcome, error) {
	res, err := e.Load(ctx, loadFromCloudIfMissing)
	if err != nil {
		return res, MigrateOutcome{}, err
	}
	out, err := e.ValidateAndMigrate(ctx, res.Document, "", "", e.cfg.AutoMigrate)
	if out.Document != nil {
		res.Document = out.Document
		res.Version = versionOf(out.Document)
	}
	return res, out, err
}

// DeclaredVersion returns doc's version key, or the configured default.
func (e *Engine) DeclaredVersion(doc *document.Node) string {
	if v := versionOf(doc); v != "" {
		return v
	}
	return e.cfg.DefaultVersion
}

func lastMessage(msgs []string) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}
