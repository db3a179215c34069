package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
)

type doctorDay struct {
	doctorID int64
	date     civil.Date
}

// MemoryStore is an arena of appointments keyed by dense ids plus two secondary indexes.
// One RWMutex covers the arena and both indexes, so an index entry is never visible
// without its record.
type MemoryStore struct {
	mu           sync.RWMutex
	nextID       int64
	appointments map[int64]Appointment
	byDoctorDay  map[doctorDay]map[int64]struct{}
	byPatient    map[int64]map[int64]struct{}

	nextEventID int64
	events      []EventLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:       1,
		appointments: make(map[int64]Appointment),
		byDoctorDay:  make(map[doctorDay]map[int64]struct{}),
		byPatient:    make(map[int64]map[int64]struct{}),
		nextEventID:  1,
	}
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (s *MemoryStore) Save(_ context.Context, a Appointment) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == 0 {
		a.ID = s.nextID
		s.nextID++
	} else if a.ID >= s.nextID {
		s.nextID = a.ID + 1
	}

	if old, ok := s.appointments[a.ID]; ok {
		s.unindex(old)
	}
	s.appointments[a.ID] = a
	s.index(a)

	saved := a
	return &saved, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	s.unindex(a)
	delete(s.appointments, id)
	return nil
}

func (s *MemoryStore) FindByDoctorAndDate(_ context.Context, doctorID int64, d civil.Date) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.byDoctorDay[doctorDay{doctorID: doctorID, date: d}], nil), nil
}

func (s *MemoryStore) FindByPatient(_ context.Context, patientID int64) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.byPatient[patientID], nil), nil
}

func (s *MemoryStore) FindByPatientAndDate(_ context.Context, patientID int64, d civil.Date) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.byPatient[patientID], func(a Appointment) bool {
		return a.Date == d
	}), nil
}

func (s *MemoryStore) FindExact(_ context.Context, doctorID, patientID int64, d civil.Date, t civil.Time) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.collect(s.byDoctorDay[doctorDay{doctorID: doctorID, date: d}], func(a Appointment) bool {
		return a.PatientID == patientID && a.Time == t
	})
	if len(matches) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return &matches[0], nil
}

func (s *MemoryStore) FindAll(_ context.Context) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	sortChronological(out)
	return out, nil
}

func (s *MemoryStore) InsertEvent(_ context.Context, ev EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = s.nextEventID
	s.nextEventID++
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (s *MemoryStore) Events() []EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EventLog, len(s.events))
	copy(out, s.events)
	return out
}

// FetchUnpublishedEvents returns up to limit events not yet relayed, oldest first.
func (s *MemoryStore) FetchUnpublishedEvents(_ context.Context, limit int) ([]EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []EventLog
	for _, ev := range s.events {
		if len(out) == limit {
			break
		}
		if ev.PublishedAt == nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkEventsPublished(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	now := time.Now()
	for i := range s.events {
		if _, ok := marked[s.events[i].ID]; ok && s.events[i].PublishedAt == nil {
			published := now
			s.events[i].PublishedAt = &published
		}
	}
	return nil
}

func (s *MemoryStore) index(a Appointment) {
	key := doctorDay{doctorID: a.DoctorID, date: a.Date}
	if s.byDoctorDay[key] == nil {
		s.byDoctorDay[key] = make(map[int64]struct{})
	}
	s.byDoctorDay[key][a.ID] = struct{}{}

	if s.byPatient[a.PatientID] == nil {
		s.byPatient[a.PatientID] = make(map[int64]struct{})
	}
	s.byPatient[a.PatientID][a.ID] = struct{}{}
}

func (s *MemoryStore) unindex(a Appointment) {
	key := doctorDay{doctorID: a.DoctorID, date: a.Date}
	if ids, ok := s.byDoctorDay[key]; ok {
		delete(ids, a.ID)
		if len(ids) == 0 {
			delete(s.byDoctorDay, key)
		}
	}
	if ids, ok := s.byPatient[a.PatientID]; ok {
		delete(ids, a.ID)
		if len(ids) == 0 {
			delete(s.byPatient, a.PatientID)
		}
	}
}

// collect copies the indexed records, keeping those accepted by keep (all when nil).
func (s *MemoryStore) collect(ids map[int64]struct{}, keep func(Appointment) bool) []Appointment {
	out := make([]Appointment, 0, len(ids))
	for id := range ids {
		a := s.appointments[id]
		if keep == nil || keep(a) {
			out = append(out, a)
		}
	}
	sortChronological(out)
	return out
}

func sortChronological(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		ai, aj := instant(appts[i].Date, appts[i].Time), instant(appts[j].Date, appts[j].Time)
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return appts[i].ID < appts[j].ID
	})
}

// MemoryDirectory is an in-process Directory used by the memory backend and tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	nextID   int64
	patients map[int64]Patient
	doctors  map[int64]Doctor
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		nextID:   1,
		patients: make(map[int64]Patient),
		doctors:  make(map[int64]Doctor),
	}
}

// AddPatient registers p, assigning an id when p.ID is zero.
func (d *MemoryDirectory) AddPatient(p Patient) Patient {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.ID == 0 {
		p.ID = d.allocate()
	} else if p.ID >= d.nextID {
		d.nextID = p.ID + 1
	}
	d.patients[p.ID] = p
	return p
}

// AddDoctor registers doc, assigning an id when doc.ID is zero.
func (d *MemoryDirectory) AddDoctor(doc Doctor) Doctor {
	d.mu.Lock()
	defer d.mu.Unlock()

	if doc.ID == 0 {
		doc.ID = d.allocate()
	} else if doc.ID >= d.nextID {
		d.nextID = doc.ID + 1
	}
	d.doctors[doc.ID] = doc
	return doc
}

func (d *MemoryDirectory) allocate() int64 {
	id := d.nextID
	d.nextID++
	return id
}

func (d *MemoryDirectory) FindPatientByID(_ context.Context, id int64) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (d *MemoryDirectory) FindDoctorByID(_ context.Context, id int64) (*Doctor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &doc, nil
}

func (d *MemoryDirectory) ListDoctorsBySpecialty(_ context.Context, specialty string) ([]Doctor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Doctor
	for _, doc := range d.doctors {
		if specialty == "" || strings.EqualFold(doc.Specialty, specialty) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
