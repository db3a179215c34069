package seed

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// Catalog is a generated set of doctors and patients without ids.
type Catalog struct {
	Doctors  []appointment.Doctor
	Patients []appointment.Patient
}

// Generate builds a reproducible catalog from seed.
func Generate(seed uint64, doctors, patients int) Catalog {
	f := gofakeit.New(seed)

	var c Catalog
	for i := 0; i < doctors; i++ {
		c.Doctors = append(c.Doctors, appointment.Doctor{
			Name:      "Dr. " + f.Name(),
			Email:     fmt.Sprintf("doctor%d.%s", i+1, f.Email()),
			Specialty: specialties[f.Number(0, len(specialties)-1)],
		})
	}

	oldest := time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC)
	youngest := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < patients; i++ {
		c.Patients = append(c.Patients, appointment.Patient{
			Name:      f.Name(),
			Email:     fmt.Sprintf("patient%d.%s", i+1, f.Email()),
			BirthDate: civil.DateOf(f.DateRange(oldest, youngest)),
		})
	}
	return c
}

// LoadMemory registers the catalog in an in-process directory and returns it with ids.
func LoadMemory(dir *appointment.MemoryDirectory, c Catalog) Catalog {
	var out Catalog
	for _, d := range c.Doctors {
		out.Doctors = append(out.Doctors, dir.AddDoctor(d))
	}
	for _, p := range c.Patients {
		out.Patients = append(out.Patients, dir.AddPatient(p))
	}
	return out
}

const batchSize = 500

// Insert writes the catalog to Postgres in batches of one transaction each.
func Insert(ctx context.Context, pool *pgxpool.Pool, c Catalog, progress func(table string, done, total int)) error {
	if progress == nil {
		progress = func(string, int, int) {}
	}

	err := inBatches(ctx, pool, len(c.Doctors), func(tx pgx.Tx, i int) error {
		d := c.Doctors[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (name, email, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, d.Name, d.Email, d.Specialty)
		return err
	}, func(done int) { progress("doctors", done, len(c.Doctors)) })
	if err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}

	err = inBatches(ctx, pool, len(c.Patients), func(tx pgx.Tx, i int) error {
		p := c.Patients[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (name, email, birth_date, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, p.Name, p.Email, p.BirthDate.In(time.UTC))
		return err
	}, func(done int) { progress("patients", done, len(c.Patients)) })
	if err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	return nil
}

func inBatches(ctx context.Context, pool *pgxpool.Pool, count int, insert func(tx pgx.Tx, i int) error, done func(int)) error {
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			if err := insert(tx, i); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
		done(end)
	}
	return nil
}
