package postgres

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"bookday/backend/internal/domain"
	"bookday/backend/internal/store"
)

// activeDateConstraint is the partial unique index on appointment_date for
// non-canceled rows. It is what makes check-and-insert race-free: two
// concurrent inserts for the same slot cannot both commit.
const activeDateConstraint = "appointments_active_date_key"

const slotLockKeyLayout = "2006-01-02T15:04:05Z"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	err := r.inSlotTransaction(ctx, appt.AppointmentDate, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&appt).Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return appt, nil
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return appt, nil
}

func (r *AppointmentRepo) ListAll(ctx context.Context) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("appointment_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *AppointmentRepo) ListActiveRange(ctx context.Context, start, end time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("status <> ?", domain.StatusCanceled).
		Where("appointment_date >= ?", start).
		Where("appointment_date <= ?", end).
		OrderExpr("appointment_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *AppointmentRepo) UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.inSlotTransaction(ctx, date, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*domain.Appointment)(nil)).
			Set("appointment_date = ?", date).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return tx.NewSelect().Model(&out).Where("id = ?", id).Scan(ctx)
	})
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return out, nil
}

func (r *AppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *AppointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// inSlotTransaction serializes writers targeting the same slot instant. The
// unique index already rejects the loser; the advisory lock keeps the losing
// transaction from burning a constraint violation into the server log on
// every race.
func (r *AppointmentRepo) inSlotTransaction(ctx context.Context, slot time.Time, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockSlot(ctx, tx, slot); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func lockSlot(ctx context.Context, tx bun.Tx, slot time.Time) error {
	key := slot.UTC().Format(slotLockKeyLayout)
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" && pgErr.ConstraintName == activeDateConstraint {
			return store.ErrConflict
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return errors.Join(store.ErrUnavailable, err)
	}
	return err
}
