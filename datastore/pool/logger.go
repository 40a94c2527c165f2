package pool

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	glogger "gorm.io/gorm/logger"

	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/data"
)

const (
	tintAttrCodeDuration = 214
	tintAttrCodeRows     = 12
	tintAttrCodeQuery    = 2
)

// queryOutcome is what a finished statement is reported as.
type queryOutcome int

const (
	outcomeQuiet queryOutcome = iota
	outcomeTraced
	outcomeSlow
	outcomeFailed
)

var statementTable = regexp.MustCompile(`(?i)\b(?:from|into|update|table)\s+(?:if\s+(?:not\s+)?exists\s+)?["\x60]?([A-Za-z_][A-Za-z0-9_]*)`)

// queryLogger reports gorm statements through the util logger, tagged with the
// dialect and the table the statement touches.
type queryLogger struct {
	baseLogger    *util.LogEntry
	dialect       string
	level         glogger.LogLevel
	logQueries    bool
	slowThreshold time.Duration
}

func newQueryLogger(ctx context.Context, dialect string, cfg config.ConfigurationDatabaseTracing) *queryLogger {
	l := &queryLogger{
		baseLogger:    util.Log(ctx),
		dialect:       dialect,
		level:         glogger.Info,
		slowThreshold: config.DefaultSlowQueryThreshold,
	}
	if cfg != nil {
		l.logQueries = cfg.CanDatabaseTraceQueries()
		l.slowThreshold = cfg.GetDatabaseSlowQueryLogThreshold()
	}
	return l
}

// LogMode returns a copy reporting at level; glogger.Silent mutes it, as db.Session does for migrations.
func (l *queryLogger) LogMode(level glogger.LogLevel) glogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Info {
		l.entry(ctx).Info(msg, args...)
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Warn {
		l.entry(ctx).Warn(msg, args...)
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= glogger.Error {
		l.entry(ctx).Error(msg, args...)
	}
}

func (l *queryLogger) entry(ctx context.Context) *util.LogEntry {
	return l.baseLogger.WithContext(ctx).WithField("dialect", l.dialect)
}

// outcome decides how a statement that ran for elapsed and returned err is reported.
// Missing rows are not failures.
func (l *queryLogger) outcome(ctx context.Context, elapsed time.Duration, err error) queryOutcome {
	if l.level == glogger.Silent {
		return outcomeQuiet
	}

	log := l.baseLogger.WithContext(ctx)
	switch {
	case err != nil && !data.ErrorIsNoRows(err):
		return outcomeFailed
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && log.Enabled(ctx, slog.LevelWarn):
		return outcomeSlow
	case log.Enabled(ctx, slog.LevelDebug), l.logQueries && log.Enabled(ctx, slog.LevelInfo):
		return outcomeTraced
	default:
		return outcomeQuiet
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	outcome := l.outcome(ctx, elapsed, err)
	if outcome == outcomeQuiet {
		return
	}

	sql, rows := fc()
	log := l.entry(ctx).
		WithField("table", statementTableName(sql)).
		With(
			tint.Attr(tintAttrCodeDuration, slog.Any("duration", elapsed.String())),
			tint.Attr(tintAttrCodeRows, slog.Any("rows", strconv.FormatInt(rows, 10))),
			tint.Attr(tintAttrCodeQuery, slog.Any("query", sql)),
		)
	defer log.Release()

	switch outcome {
	case outcomeFailed:
		log.WithError(err).Error("query failed")
	case outcomeSlow:
		log.WithField("threshold", l.slowThreshold.String()).Warn("slow query")
	case outcomeTraced:
		log.Debug("query executed")
	}
}

// statementTableName is the first table a statement reads or writes, empty when none is named.
func statementTableName(sql string) string {
	match := statementTable.FindStringSubmatch(sql)
	if match == nil {
		return ""
	}
	return match[1]
}
