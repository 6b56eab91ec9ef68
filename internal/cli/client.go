package cli

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — задача скрейпера из API.
type TaskResponse struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	City       string `json:"city"`
	Type       string `json:"task_type"`
	Status     string `json:"status"`
	ExternalID string `json:"external_id,omitempty"`
	ListingURL string `json:"listing_url,omitempty"`
	Attempts   int    `json:"attempts"`
	ClaimedBy  string `json:"claimed_by,omitempty"`
	ClaimedAt  string `json:"claimed_at,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// CreateDiscoverResponse — результат постановки discover-задачи.
type CreateDiscoverResponse struct {
	Created bool         `json:"created"`
	Task    TaskResponse `json:"task"`
}

// CountResponse — число затронутых строк.
type CountResponse struct {
	Count int64 `json:"count"`
}

// DeliveryResponse — доставка в CRM из API.
type DeliveryResponse struct {
	ID            string         `json:"id"`
	AccountID     string         `json:"account_id"`
	LeadID        string         `json:"lead_id"`
	ListingURL    string         `json:"listing_url"`
	Status        string         `json:"status"`
	Attempts      int            `json:"attempts"`
	LastAttemptAt string         `json:"last_attempt_at,omitempty"`
	NextAttemptAt string         `json:"next_attempt_at,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// LeadResponse — лид из API.
type LeadResponse struct {
	ID         string         `json:"id"`
	AccountID  string         `json:"account_id"`
	Source     string         `json:"source"`
	ExternalID string         `json:"external_id"`
	ListingURL string         `json:"listing_url"`
	City       string         `json:"city,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Email      string         `json:"email,omitempty"`
	State      string         `json:"state"`
	LeadStatus string         `json:"lead_status,omitempty"`
	Listing    map[string]any `json:"listing,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// TouchResponse — касание из API.
type TouchResponse struct {
	ID          string         `json:"id"`
	LeadID      string         `json:"lead_id"`
	CampaignID  string         `json:"campaign_id,omitempty"`
	Step        int            `json:"step"`
	Channel     string         `json:"channel"`
	Status      string         `json:"status"`
	Payload     map[string]any `json:"payload,omitempty"`
	ScheduledAt string         `json:"scheduled_at"`
	SentAt      string         `json:"sent_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// EnrollResponse — результат записи лида в кампанию.
type EnrollResponse struct {
	Inserted int             `json:"inserted"`
	Touches  []TouchResponse `json:"touches"`
}

// InboundResult — ответ на входящее событие.
type InboundResult struct {
	Result   string `json:"result"`
	LeadID   string `json:"lead_id,omitempty"`
	State    string `json:"state,omitempty"`
	Deduped  bool   `json:"deduped"`
	Canceled int64  `json:"canceled"`
}

// ScheduleResponse — расписание discover из API.
type ScheduleResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	City        string `json:"city"`
	IndexURL    string `json:"index_url,omitempty"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone"`
	Enabled     bool   `json:"enabled"`
	NextDueAt   string `json:"next_due_at,omitempty"`
	LastRunAt   string `json:"last_run_at,omitempty"`
	LastTaskID  string `json:"last_task_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// --- Request types ---

// CreateDiscoverRequest — постановка discover-задачи.
type CreateDiscoverRequest struct {
	AccountID string `json:"account_id"`
	City      string `json:"city"`
	IndexURL  string `json:"index_url,omitempty"`
}

// RequeueRequest — возврат failed-задач в очередь.
type RequeueRequest struct {
	IDs          []string `json:"ids,omitempty"`
	AccountID    string   `json:"account_id,omitempty"`
	City         string   `json:"city,omitempty"`
	ReasonPrefix string   `json:"reason_prefix,omitempty"`
}

// CampaignStep — шаг кампании.
type CampaignStep struct {
	OffsetSec int            `json:"offset_sec"`
	Channel   string         `json:"channel"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EnrollRequest — запись лида в кампанию.
type EnrollRequest struct {
	CampaignID string         `json:"campaign_id,omitempty"`
	Name       string         `json:"name"`
	Steps      []CampaignStep `json:"steps"`
	StartAt    *time.Time     `json:"start_at,omitempty"`
}

// InboundEvent — входящее событие для webhook.
type InboundEvent struct {
	EventID   string `json:"event_id"`
	AccountID string `json:"account_id"`
	Kind      string `json:"kind"`
	LeadID    string `json:"lead_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Channel   string `json:"channel,omitempty"`
	TouchID   string `json:"touch_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// CreateScheduleRequest — создание расписания.
type CreateScheduleRequest struct {
	AccountID   string `json:"account_id"`
	City        string `json:"city"`
	IndexURL    string `json:"index_url,omitempty"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// UpdateScheduleRequest — обновление расписания.
type UpdateScheduleRequest struct {
	City        *string `json:"city,omitempty"`
	IndexURL    *string `json:"index_url,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ListOpts — общие фильтры списков.
type ListOpts struct {
	AccountID string
	City      string
	Status    string
	Type      string
	LeadID    string
	Limit     int
}

func (o ListOpts) values() url.Values {
	params := url.Values{}
	if o.AccountID != "" {
		params.Set("account_id", o.AccountID)
	}
	if o.City != "" {
		params.Set("city", o.City)
	}
	if o.Status != "" {
		params.Set("status", o.Status)
	}
	if o.Type != "" {
		params.Set("type", o.Type)
	}
	if o.LeadID != "" {
		params.Set("lead_id", o.LeadID)
	}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	return params
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Prospector API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Tasks ---

// ListTasks возвращает задачи скрейпера.
func (c *Client) ListTasks(opts ListOpts) ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", opts.values(), &tasks)
	return tasks, err
}

// GetTask возвращает задачу по ID.
func (c *Client) GetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.get("/api/v1/tasks/"+id, &task)
	return &task, err
}

// CreateDiscover ставит discover-задачу.
func (c *Client) CreateDiscover(req CreateDiscoverRequest) (*CreateDiscoverResponse, error) {
	var res CreateDiscoverResponse
	err := c.post("/api/v1/tasks/discover", req, &res)
	return &res, err
}

// ReclaimTasks возвращает в очередь задачи с протухшим claim.
// olderThan == 0 — таймаут видимости сервера.
func (c *Client) ReclaimTasks(olderThan time.Duration) (int64, error) {
	var body any
	if olderThan > 0 {
		body = map[string]int{"older_than_sec": int(olderThan.Seconds())}
	}
	var res CountResponse
	err := c.post("/api/v1/tasks/reclaim", body, &res)
	return res.Count, err
}

// RequeueTasks возвращает failed-задачи в очередь.
func (c *Client) RequeueTasks(req RequeueRequest) (int64, error) {
	var res CountResponse
	err := c.post("/api/v1/tasks/requeue", req, &res)
	return res.Count, err
}

// --- Deliveries ---

// ListDeliveries возвращает доставки.
func (c *Client) ListDeliveries(opts ListOpts) ([]DeliveryResponse, error) {
	var deliveries []DeliveryResponse
	err := c.list("/api/v1/deliveries", opts.values(), &deliveries)
	return deliveries, err
}

// EnqueueDeliveries создаёт доставки для лидов без доставки.
func (c *Client) EnqueueDeliveries(accountID string) (int64, error) {
	body := map[string]string{}
	if accountID != "" {
		body["account_id"] = accountID
	}
	var res CountResponse
	err := c.post("/api/v1/deliveries/enqueue", body, &res)
	return res.Count, err
}

// --- Leads & touches ---

// GetLead возвращает лид по ID.
func (c *Client) GetLead(id string) (*LeadResponse, error) {
	var lead LeadResponse
	err := c.get("/api/v1/leads/"+id, &lead)
	return &lead, err
}

// SetLeadStateResponse — итог смены состояния лида.
type SetLeadStateResponse struct {
	Lead     LeadResponse `json:"lead"`
	Canceled int          `json:"canceled"`
}

// SetLeadState переводит лид в новое состояние.
func (c *Client) SetLeadState(id, state string) (*SetLeadStateResponse, error) {
	var res SetLeadStateResponse
	err := c.put("/api/v1/leads/"+id+"/state", map[string]string{"state": state}, &res)
	return &res, err
}

// EnrollLead записывает лид в кампанию.
func (c *Client) EnrollLead(leadID string, req EnrollRequest) (*EnrollResponse, error) {
	var res EnrollResponse
	err := c.post("/api/v1/leads/"+leadID+"/enroll", req, &res)
	return &res, err
}

// ListTouches возвращает касания лида.
func (c *Client) ListTouches(leadID string) ([]TouchResponse, error) {
	var touches []TouchResponse
	err := c.list("/api/v1/leads/"+leadID+"/touches", nil, &touches)
	return touches, err
}

// SendTouch отправляет разовое касание.
func (c *Client) SendTouch(leadID, channel string, payload map[string]any) (*TouchResponse, error) {
	body := map[string]any{"channel": channel}
	if len(payload) > 0 {
		body["payload"] = payload
	}
	var touch TouchResponse
	err := c.post("/api/v1/leads/"+leadID+"/touches", body, &touch)
	return &touch, err
}

// ExecuteTouch выполняет касание немедленно.
func (c *Client) ExecuteTouch(id string) (*TouchResponse, error) {
	var touch TouchResponse
	err := c.post("/api/v1/touches/"+id+"/execute", nil, &touch)
	return &touch, err
}

// --- Webhooks ---

// SendInbound отправляет входящее событие, подписывая тело секретом (если задан).
func (c *Client) SendInbound(ev InboundEvent, secret string) (*InboundResult, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{}
	if secret != "" {
		headers["X-Signature"] = "sha256=" + sign([]byte(secret), data)
	}

	resp, err := c.doRaw(http.MethodPost, "/webhooks/inbound", data, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res InboundResult
	if err := c.decodeData(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// --- Schedules ---

// ListSchedules возвращает расписания.
func (c *Client) ListSchedules(opts ListOpts) ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", opts.values(), &schedules)
	return schedules, err
}

// CreateSchedule создаёт расписание.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает расписание по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет расписание.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет расписание.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// SetScheduleEnabled включает или выключает расписание.
func (c *Client) SetScheduleEnabled(id string, enabled bool) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": enabled}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decodeData(resp, result)
}

func (c *Client) decodeData(resp *http.Response, result any) error {
	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	return c.doRaw(method, path, data, nil)
}

func (c *Client) doRaw(method, path string, data []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if data != nil {
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
