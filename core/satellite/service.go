package satellite

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/relation"
)

var (
	// errors
	ErrNotFound  = errors.New("satellite key not found")
	ErrKeyExists = errors.New("a satellite key with this key already exists")

	changeNotificationTmpl = template.Must(template.New("mfo_changes").Parse(
		`The MFO list of satellite page "{{.Key.Key}}" ({{.Key.TitleUK}}) was changed by {{.Actor}}.
{{if .Added}}
Added:
{{range .Added}}  + {{.Name}} (#{{.ID}})
{{end}}{{end}}{{if .Removed}}
Removed:
{{range .Removed}}  - {{.Name}} (#{{.ID}})
{{end}}{{end}}`))
)

type (
	Repository interface {
		CheckKeyUniqueness(ctx context.Context, key string) error
		CreateKey(ctx context.Context, k Key) (Key, error)
		QueryKeys(ctx context.Context, filter *QueryFilter) ([]Key, error)
		GetKey(ctx context.Context, id int) (Key, error)
		// ApplyMFOChanges links cs.Added and unlinks cs.Removed in one transaction.
		ApplyMFOChanges(ctx context.Context, keyID int, cs relation.ChangeSet, updatedAt time.Time) (Key, error)
	}

	Service interface {
		CheckKeyUniqueness(ctx context.Context, key string) error
		Create(ctx context.Context, nk NewKey) (Key, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Key, error)
		GetByID(ctx context.Context, id int) (Key, error)
		ApplyMFOChanges(ctx context.Context, keyID int, cs relation.ChangeSet, actor string) (Key, error)
	}

	Deps struct {
		Repo       Repository
		MFOSvc     mfo.Service
		MailSvc    core.EmailService
		Recipients []mail.Address
		Logger     core.Logger
	}

	service struct {
		Deps
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{Deps: deps}
}

func (svc *service) CheckKeyUniqueness(ctx context.Context, key string) error {
	if err := svc.Repo.CheckKeyUniqueness(ctx, key); err != nil {
		if err == ErrKeyExists {
			return core.NewValidationError(err, core.FieldError{Field: "key", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nk NewKey) (Key, error) {
	ids := relation.NewSet(nk.MFOIDs...).Slice()
	if err := svc.checkMFOsExist(ctx, "mfo_ids", ids); err != nil {
		return Key{}, err
	}
	now := time.Now().UTC()
	return svc.Repo.CreateKey(ctx, Key{
		Key:       nk.Key,
		TitleUK:   nk.TitleUK,
		TitleRU:   nk.TitleRU,
		MFOIDs:    ids,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Key, error) {
	return svc.Repo.QueryKeys(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id int) (Key, error) {
	return svc.Repo.GetKey(ctx, id)
}

// ApplyMFOChanges validates cs against the key and the MFO table, applies it
// atomically and notifies the configured recipients.
func (svc *service) ApplyMFOChanges(ctx context.Context, keyID int, cs relation.ChangeSet, actor string) (Key, error) {
	cs, err := normalize(cs)
	if err != nil {
		return Key{}, err
	}

	key, err := svc.Repo.GetKey(ctx, keyID)
	if err != nil {
		return Key{}, err
	}
	if cs.IsEmpty() {
		return key, nil
	}
	if err = svc.checkMFOsExist(ctx, "added", cs.Added); err != nil {
		return Key{}, err
	}

	key, err = svc.Repo.ApplyMFOChanges(ctx, keyID, cs, time.Now().UTC())
	if err != nil {
		return Key{}, err
	}

	svc.notify(ctx, key, cs, actor)
	return key, nil
}

// normalize de-duplicates and sorts cs, and rejects invalid or overlapping IDs.
func normalize(cs relation.ChangeSet) (relation.ChangeSet, error) {
	var fldErrs []core.FieldError
	for _, list := range []struct {
		field string
		ids   []int
	}{
		{"added", cs.Added},
		{"removed", cs.Removed},
	} {
		for _, id := range list.ids {
			if id <= 0 {
				fldErrs = append(fldErrs, core.FieldError{Field: list.field, Error: "ids must be positive integers"})
				break
			}
		}
	}
	if overlap := cs.Overlap(); len(overlap) > 0 {
		fldErrs = append(fldErrs, core.FieldError{
			Field: "removed",
			Error: "ids cannot be both added and removed: " + joinIDs(overlap),
		})
	}
	if len(fldErrs) > 0 {
		return relation.ChangeSet{}, core.NewValidationError(nil, fldErrs...)
	}
	return relation.ChangeSet{
		Added:   relation.NewSet(cs.Added...).Slice(),
		Removed: relation.NewSet(cs.Removed...).Slice(),
	}, nil
}

func (svc *service) checkMFOsExist(ctx context.Context, field string, ids []int) error {
	missing, err := svc.MFOSvc.MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "unknown mfo ids: " + joinIDs(missing)})
	}
	return nil
}

type changeNotification struct {
	Key     Key
	Actor   string
	Added   []mfo.MFO
	Removed []mfo.MFO
}

func (svc *service) notify(ctx context.Context, key Key, cs relation.ChangeSet, actor string) {
	if svc.MailSvc == nil || len(svc.Recipients) == 0 {
		return
	}

	mfos, err := svc.MFOSvc.Query(ctx, &mfo.QueryFilter{IDs: cs.IDs()}, nil)
	if err != nil {
		svc.logError(fmt.Sprintf("querying changed MFOs of key %d", key.ID), err)
		return
	}
	byID := make(map[int]mfo.MFO, len(mfos))
	for _, m := range mfos {
		byID[m.ID] = m
	}
	pick := func(ids []int) []mfo.MFO {
		picked := make([]mfo.MFO, 0, len(ids))
		for _, id := range ids {
			m, ok := byID[id]
			if !ok {
				m = mfo.MFO{ID: id, Name: "(deleted)"}
			}
			picked = append(picked, m)
		}
		return picked
	}

	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:       svc.Recipients,
		Subject:  fmt.Sprintf("MFOs of %q changed (+%d/-%d)", key.Key, len(cs.Added), len(cs.Removed)),
		Template: changeNotificationTmpl,
		TemplateData: changeNotification{
			Key:     key,
			Actor:   actor,
			Added:   pick(cs.Added),
			Removed: pick(cs.Removed),
		},
	})
}

func (svc *service) logError(msg string, err error) {
	if svc.Logger != nil {
		svc.Logger.Error(msg, err)
	}
}

func joinIDs(ids []int) string {
	strs := make([]string, 0, len(ids))
	for _, id := range ids {
		strs = append(strs, strconv.Itoa(id))
	}
	return strings.Join(strs, ", ")
}
