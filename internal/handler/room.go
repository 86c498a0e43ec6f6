package handler

import (
    "net/http" // HTTP status codes
    "strings"  // trimming request fields
    "time"     // validating the availability date

    "github.com/avelio/room-reservation/internal/model"      // model holds domain entities
    "github.com/avelio/room-reservation/internal/repository" // repository layer
    "github.com/labstack/echo/v4"                            // Echo web framework
)

// CatalogHandler serves the room and equipment catalog plus per-date
// room availability.  Listing and availability are open to any
// authenticated user; creation is approver-only via route middleware.
type CatalogHandler struct {
    Rooms     *repository.RoomRepo
    Equipment *repository.EquipmentRepo
    Intervals *repository.ResourceIntervalRepo
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(rooms *repository.RoomRepo, equipment *repository.EquipmentRepo, intervals *repository.ResourceIntervalRepo) *CatalogHandler {
    if rooms == nil || equipment == nil || intervals == nil {
        panic("nil repository passed to NewCatalogHandler")
    }
    return &CatalogHandler{Rooms: rooms, Equipment: equipment, Intervals: intervals}
}

type roomView struct {
    ID          uint64 `json:"id"`
    Name        string `json:"name"`
    HourlyRate  uint32 `json:"hourly_rate_cents"`
    OpenMin     int    `json:"open_min"`
    CloseMin    int    `json:"close_min"`
    SlotMinutes int    `json:"slot_minutes"`
}

func viewRoom(rm model.Room) roomView {
    return roomView{
        ID:          rm.ID,
        Name:        rm.Name,
        HourlyRate:  rm.HourlyRateCents,
        OpenMin:     rm.OpenMin,
        CloseMin:    rm.CloseMin,
        SlotMinutes: rm.SlotMinutes,
    }
}

// ListRooms handles GET /v1/rooms.
func (h *CatalogHandler) ListRooms(c echo.Context) error {
    rooms, err := h.Rooms.List(c.Request().Context())
    if err != nil {
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]roomView, 0, len(rooms))
    for _, rm := range rooms {
        out = append(out, viewRoom(rm))
    }
    return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}

// Availability handles GET /v1/rooms/:id/availability?date=YYYY-MM-DD.
// It walks the room's published slot grid and flags each slot that
// overlaps a LOCKED or RESERVED interval on that date.  Responses are
// cacheable per-URL; the cache middleware keeps the TTL short so a
// fresh lock shows up quickly.
func (h *CatalogHandler) Availability(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    date := c.QueryParam("date")
    if _, err := time.Parse("2006-01-02", date); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
    }
    ctx := c.Request().Context()
    rm, err := h.Rooms.GetByID(ctx, id)
    if err != nil {
        if err == repository.ErrRoomNotFound {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
        }
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    held, err := h.Intervals.HeldByResource(ctx, model.ResourceRoom, id, date)
    if err != nil {
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    type slotView struct {
        Slot      string `json:"slot"`
        Available bool   `json:"available"`
    }
    grid := repository.PublishedSlots(rm)
    out := make([]slotView, 0, len(grid))
    for _, s := range grid {
        free := true
        for _, rec := range held {
            if s.Overlaps(rec.Slot()) {
                free = false
                break
            }
        }
        out = append(out, slotView{Slot: s.String(), Available: free})
    }
    return c.JSON(http.StatusOK, echo.Map{"room_id": id, "date": date, "slots": out})
}

// CreateRoom handles POST /v1/rooms.  Approver only.
func (h *CatalogHandler) CreateRoom(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        Name        string `json:"name"`
        HourlyRate  uint32 `json:"hourly_rate_cents"`
        OpenMin     int    `json:"open_min"`
        CloseMin    int    `json:"close_min"`
        SlotMinutes int    `json:"slot_minutes"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    body.Name = strings.TrimSpace(body.Name)
    if body.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
    }
    if body.SlotMinutes <= 0 || body.OpenMin < 0 || body.CloseMin > 1440 || body.OpenMin >= body.CloseMin {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid opening window"})
    }
    if (body.CloseMin-body.OpenMin)%body.SlotMinutes != 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "opening window must be a multiple of slot_minutes"})
    }
    rm := model.Room{
        Name:            body.Name,
        OwnerID:         userID,
        HourlyRateCents: body.HourlyRate,
        OpenMin:         body.OpenMin,
        CloseMin:        body.CloseMin,
        SlotMinutes:     body.SlotMinutes,
        IsActive:        true,
    }
    if err := h.Rooms.Create(c.Request().Context(), &rm); err != nil {
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusCreated, viewRoom(rm))
}

type equipmentView struct {
    ID        uint64 `json:"id"`
    Name      string `json:"name"`
    Kind      string `json:"kind"`
    DailyRate uint32 `json:"daily_rate_cents"`
}

// ListEquipment handles GET /v1/equipment.
func (h *CatalogHandler) ListEquipment(c echo.Context) error {
    items, err := h.Equipment.List(c.Request().Context())
    if err != nil {
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]equipmentView, 0, len(items))
    for _, eq := range items {
        out = append(out, equipmentView{ID: eq.ID, Name: eq.Name, Kind: eq.Kind, DailyRate: eq.DailyRateCents})
    }
    return c.JSON(http.StatusOK, echo.Map{"equipment": out})
}

// CreateEquipment handles POST /v1/equipment.  Approver only.
func (h *CatalogHandler) CreateEquipment(c echo.Context) error {
    var body struct {
        Name      string `json:"name"`
        Kind      string `json:"kind"`
        DailyRate uint32 `json:"daily_rate_cents"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    body.Name = strings.TrimSpace(body.Name)
    if body.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
    }
    if body.Kind != model.EquipmentItem && body.Kind != model.EquipmentBooth {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be ITEM or BOOTH"})
    }
    eq := model.Equipment{
        Name:           body.Name,
        Kind:           body.Kind,
        DailyRateCents: body.DailyRate,
        IsActive:       true,
    }
    if err := h.Equipment.Create(c.Request().Context(), &eq); err != nil {
        c.Logger().Error(err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusCreated, equipmentView{ID: eq.ID, Name: eq.Name, Kind: eq.Kind, DailyRate: eq.DailyRateCents})
}
