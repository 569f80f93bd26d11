package handler

import (
    "context"
    "net/http"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/openlodge/reservations/internal/model"
    "github.com/openlodge/reservations/internal/repository"
)

// fakeUnitAdmin is a canned-response UnitAdmin.
type fakeUnitAdmin struct {
    created   []model.CapacityUnit
    createErr error

    setUnitID string
    setMax    int
    setErr    error

    units   []model.CapacityUnit
    listErr error

    availability model.Availability
    availErr     error
}

func (f *fakeUnitAdmin) CreateUnit(ctx context.Context, unit model.CapacityUnit) error {
    f.created = append(f.created, unit)
    return f.createErr
}

func (f *fakeUnitAdmin) SetMaxCapacity(ctx context.Context, unitID string, maxCapacity int) error {
    f.setUnitID, f.setMax = unitID, maxCapacity
    return f.setErr
}

func (f *fakeUnitAdmin) ListUnits(ctx context.Context) ([]model.CapacityUnit, error) {
    return f.units, f.listErr
}

func (f *fakeUnitAdmin) GetAvailability(ctx context.Context, unitID string) (model.Availability, error) {
    return f.availability, f.availErr
}

func TestCreateUnit(t *testing.T) {
    t.Parallel()
    admin := &fakeUnitAdmin{}
    h := NewAdminHandler(admin)

    rec := doRequest(t, http.MethodPost, "/v1/admin/units",
        `{"unit_id":"banquet-2026","unit_type":"TICKET","name":"Festive Board","max_capacity":120}`,
        nil, h.CreateUnit)

    assert.Equal(t, http.StatusCreated, rec.Code)
    require.Len(t, admin.created, 1)
    assert.Equal(t, "banquet-2026", admin.created[0].UnitID)
    assert.Equal(t, model.UnitTypeTicket, admin.created[0].UnitType)
    assert.Equal(t, 120, admin.created[0].MaxCapacity)
}

func TestCreateUnitValidation(t *testing.T) {
    t.Parallel()
    cases := []struct {
        name string
        body string
    }{
        {"missing unit_id", `{"unit_type":"TICKET","name":"x","max_capacity":1}`},
        {"missing name", `{"unit_id":"u","unit_type":"TICKET","max_capacity":1}`},
        {"bad unit_type", `{"unit_id":"u","unit_type":"SEAT","name":"x","max_capacity":1}`},
        {"negative capacity", `{"unit_id":"u","unit_type":"VAS","name":"x","max_capacity":-1}`},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            admin := &fakeUnitAdmin{}
            h := NewAdminHandler(admin)
            rec := doRequest(t, http.MethodPost, "/v1/admin/units", tc.body, nil, h.CreateUnit)
            assert.Equal(t, http.StatusBadRequest, rec.Code)
            assert.Empty(t, admin.created)
        })
    }
}

func TestCreateUnitDuplicateIsConflict(t *testing.T) {
    t.Parallel()
    admin := &fakeUnitAdmin{createErr: repository.ErrUnitExists}
    h := NewAdminHandler(admin)

    rec := doRequest(t, http.MethodPost, "/v1/admin/units",
        `{"unit_id":"banquet-2026","unit_type":"TICKET","name":"Festive Board","max_capacity":120}`,
        nil, h.CreateUnit)

    assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSetCapacity(t *testing.T) {
    t.Parallel()
    admin := &fakeUnitAdmin{availability: model.Availability{
        UnitID: "banquet-2026", Max: 150, Reserved: 10, Sold: 20, Available: 120,
    }}
    h := NewAdminHandler(admin)

    rec := doRequest(t, http.MethodPut, "/v1/admin/units/banquet-2026/capacity",
        `{"max_capacity":150}`, map[string]string{"id": "banquet-2026"}, h.SetCapacity)

    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "banquet-2026", admin.setUnitID)
    assert.Equal(t, 150, admin.setMax)
    assert.Equal(t, float64(120), decode(t, rec)["available"])
}

func TestSetCapacityBelowCommittedIsConflict(t *testing.T) {
    t.Parallel()
    admin := &fakeUnitAdmin{setErr: repository.ErrCapacityBelowCommitted}
    h := NewAdminHandler(admin)

    rec := doRequest(t, http.MethodPut, "/v1/admin/units/banquet-2026/capacity",
        `{"max_capacity":5}`, map[string]string{"id": "banquet-2026"}, h.SetCapacity)

    assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSetCapacityUnknownUnit(t *testing.T) {
    t.Parallel()
    admin := &fakeUnitAdmin{setErr: repository.ErrUnitNotFound}
    h := NewAdminHandler(admin)

    rec := doRequest(t, http.MethodPut, "/v1/admin/units/nope/capacity",
        `{"max_capacity":5}`, map[string]string{"id": "nope"}, h.SetCapacity)

    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUnitsIncludesDerivedAvailability(t *testing.T) {
    t.Parallel()
    admin := &fakeUnitAdmin{units: []model.CapacityUnit{
        {UnitID: "banquet-2026", UnitType: model.UnitTypeTicket, Name: "Festive Board", MaxCapacity: 120, ReservedCount: 10, SoldCount: 30},
        {UnitID: "regalia-case", UnitType: model.UnitTypeVAS, Name: "Regalia Case", MaxCapacity: 40},
    }}
    h := NewAdminHandler(admin)

    rec := doRequest(t, http.MethodGet, "/v1/admin/units", "", nil, h.ListUnits)

    assert.Equal(t, http.StatusOK, rec.Code)
    items, ok := decode(t, rec)["items"].([]any)
    require.True(t, ok)
    require.Len(t, items, 2)
    first := items[0].(map[string]any)
    assert.Equal(t, float64(80), first["available"])
}
