package main

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/elijahnyp/office_controller/state"
	. "github.com/elijahnyp/office_controller/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from elsewhere on the LAN
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// SystemStatus represents the overall office status
type SystemStatus struct {
	Office         string          `json:"office"`
	RoomStatuses   []WebRoomStatus `json:"room_statuses"`
	RecentActivity []ActivityItem  `json:"recent_activity"`
	TotalRooms     int             `json:"total_rooms"`
	OccupiedRooms  int             `json:"occupied_rooms"`
}

// WebRoomStatus represents room status for web interface
type WebRoomStatus struct {
	Number      int    `json:"number"`
	Name        string `json:"name"`
	Occupied    bool   `json:"occupied"`
	MaxCapacity int    `json:"max_capacity"`
}

// RoomDetail represents detailed room information
type RoomDetail struct {
	WebRoomStatus
	Sensors  []string       `json:"sensors"`
	Activity []ActivityItem `json:"activity"`
}

type apiResult struct {
	Room     int    `json:"room"`
	Occupied bool   `json:"occupied"`
	Error    string `json:"error,omitempty"`
}

var wsHub *WSHub

func init() {
	wsHub = NewHub()
	go wsHub.Run()
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		// Channel is full, skip this update
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// ServeWebSocket handles websocket requests from the peer
func ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  wsHub,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, state.ErrInvalidRoomNumber):
		return http.StatusNotFound
	case errors.Is(err, state.ErrBookingConflict), errors.Is(err, state.ErrNoActiveBooking):
		return http.StatusConflict
	case errors.Is(err, state.ErrInvalidCapacity):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func methodAllowed(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		if _, err := io.WriteString(w, "Bad Request Method\n"); err != nil {
			Logger.Error().Msgf("Error writing response: %v", err)
		}
		return false
	}
	return true
}

func formInt(r *http.Request, key string) (int, error) {
	if err := r.ParseForm(); err != nil {
		return 0, err
	}
	return strconv.Atoi(r.FormValue(key))
}

// requestRoom resolves the room query/form value, writing the error
// response itself when it cannot.
func requestRoom(w http.ResponseWriter, r *http.Request) (*state.Room, bool) {
	number, err := formInt(r, "room")
	if err != nil {
		http.Error(w, "room must be a number", http.StatusBadRequest)
		return nil, false
	}
	room, err := office.GetRoom(number)
	if err != nil {
		writeJSON(w, statusForError(err), apiResult{Room: number, Error: err.Error()})
		return nil, false
	}
	return room, true
}

// APISystemStatus returns the overall office status as JSON
func APISystemStatus(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	status := SystemStatus{
		Office:         models.Load().Name,
		RoomStatuses:   []WebRoomStatus{},
		RecentActivity: activity.Recent(0),
	}
	for _, room := range office.Rooms() {
		rs := roomStatus(room)
		if rs.Occupied {
			status.OccupiedRooms++
		}
		status.RoomStatuses = append(status.RoomStatuses, rs)
	}
	status.TotalRooms = len(status.RoomStatuses)
	writeJSON(w, http.StatusOK, status)
}

// APIRoomDetail returns detailed information about a specific room
func APIRoomDetail(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	room, ok := requestRoom(w, r)
	if !ok {
		return
	}
	detail := RoomDetail{
		WebRoomStatus: roomStatus(room),
		Sensors:       []string{},
		Activity:      activity.Recent(room.Number()),
	}
	for _, s := range room.Sensors() {
		detail.Sensors = append(detail.Sensors, s.Name())
	}
	writeJSON(w, http.StatusOK, detail)
}

func runCommand(w http.ResponseWriter, room *state.Room, cmd state.Command) {
	err := ExecuteCommand(room.Number(), cmd)
	result := apiResult{Room: room.Number(), Occupied: room.IsOccupied()}
	if err != nil {
		result.Error = err.Error()
		writeJSON(w, statusForError(err), result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// APIBook books a room: room, start_time and duration (minutes) form values
func APIBook(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	room, ok := requestRoom(w, r)
	if !ok {
		return
	}
	duration, err := formInt(r, "duration")
	if err != nil {
		http.Error(w, "duration must be a number", http.StatusBadRequest)
		return
	}
	cmd, err := BookingRequest{Action: "book", StartTime: r.FormValue("start_time"), Duration: duration}.Command()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	runCommand(w, room, cmd)
}

// APICancel cancels the booking on a room
func APICancel(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	room, ok := requestRoom(w, r)
	if !ok {
		return
	}
	runCommand(w, room, state.CancelBooking{})
}

// APIOccupants records a head count for a room
func APIOccupants(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	room, ok := requestRoom(w, r)
	if !ok {
		return
	}
	count, err := formInt(r, "count")
	if err != nil {
		http.Error(w, "count must be a number", http.StatusBadRequest)
		return
	}
	occupied, err := ApplyCount(room.Number(), count, "api")
	if err != nil {
		writeJSON(w, statusForError(err), apiResult{Room: room.Number(), Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResult{Room: room.Number(), Occupied: occupied})
}

// APICapacity sets a room's maximum capacity
func APICapacity(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	room, ok := requestRoom(w, r)
	if !ok {
		return
	}
	capacity, err := formInt(r, "capacity")
	if err != nil {
		http.Error(w, "capacity must be a number", http.StatusBadRequest)
		return
	}
	if err := room.SetMaxCapacity(capacity); err != nil {
		writeJSON(w, statusForError(err), apiResult{Room: room.Number(), Occupied: room.IsOccupied(), Error: err.Error()})
		return
	}
	reportRoom(room, "capacity", "capacity set to "+strconv.Itoa(capacity))
	writeJSON(w, http.StatusOK, roomStatus(room))
}

// RoomSign serves the door sign for a room as a PNG
func RoomSign(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	room, ok := requestRoom(w, r)
	if !ok {
		return
	}
	status := roomStatus(room)
	img := RenderRoomSign(status.Name, status.Occupied, status.MaxCapacity)
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		Logger.Error().Msgf("Error encoding room sign: %v", err)
	}
}
