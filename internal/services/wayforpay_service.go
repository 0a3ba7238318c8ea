package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/lavka/internal/models"
)

// WayForPayProviderID identifies this integration in the provider registry,
// transaction records and callback logs.
const WayForPayProviderID = "wayforpay"

// statusApproved is the only gateway status that maps to a payment result.
const statusApproved = "Approved"

// Log levels used in callback diagnostics. An empty log type means the
// callback was ignored silently.
const (
	LogTypeInfo  = "info"
	LogTypeError = "error"
)

// PaymentResult is the terminal outcome of callback processing.
type PaymentResult int

const (
	PaymentResultNone PaymentResult = iota
	PaymentResultReceived
	PaymentResultFailed
)

var supportedCurrencies = []string{"RUB", "USD", "EUR", "UAH"}

// ErrNoRecurring is returned for every recurring-setup attempt. WayForPay
// profiles never support recurring billing.
var ErrNoRecurring = errors.New("recurring payments are not supported")

var wayforpayClient = &http.Client{Timeout: 15 * time.Second}

// CallbackState carries an inbound gateway notification through the
// validation pipeline. It is created once per callback and discarded after
// the outcome is dispatched.
type CallbackState struct {
	RawInput []byte
	Input    map[string]any

	TransactionID string
	SubscriberID  string
	RequestKey    string
	Status        string
	CostAmount    decimal.NullDecimal
	CostCurrency  string
	Signature     string
	IP            string

	HTTPCode      int
	PaymentResult PaymentResult
	LogType       string
	LogMessage    string

	PurchaseRequest *models.PurchaseRequest
	Profile         *models.PaymentProfile
}

// WayForPayService implements the WayForPay payment protocol: outbound
// payment initiation and inbound callback reconciliation.
type WayForPayService struct {
	db       *gorm.DB
	endpoint string
}

// NewWayForPayService constructs a WayForPayService posting to the given
// gateway endpoint.
func NewWayForPayService(db *gorm.DB, endpoint string) *WayForPayService {
	return &WayForPayService{db: db, endpoint: endpoint}
}

// NewRequestKey generates an opaque purchase request key used as the
// gateway's orderReference.
func NewRequestKey() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("request key generation: %v", err))
	}
	return hex.EncodeToString(buf)
}

// SupportsCurrency reports whether the gateway accepts the currency code.
func SupportsCurrency(code string) bool {
	for _, supported := range supportedCurrencies {
		if code == supported {
			return true
		}
	}
	return false
}

// SupportsRecurring always refuses: the gateway integration has no
// recurring billing, for any unit or amount.
func SupportsRecurring(profile *models.PaymentProfile, unit string, amount int) (bool, error) {
	return false, ErrNoRecurring
}

// Purchase describes the item being paid for at initiation time.
type Purchase struct {
	Title    string
	Cost     decimal.Decimal
	Currency string
	Email    string
}

// OutboundPaymentPayload is the signed payment-initiation form posted to the
// gateway. MerchantSignature is always computed last and never covers itself.
type OutboundPaymentPayload struct {
	MerchantAccount   string
	MerchantDomain    string
	ServiceURL        string
	OrderReference    string
	OrderDate         int64
	Amount            string
	Currency          string
	ProductNames      []string
	ProductPrices     []string
	ProductCounts     []string
	ClientAccountID   string
	ClientEmail       string
	MerchantSignature string
}

// BuildPaymentRequest assembles and signs the outbound payload. Time and the
// current visitor's email come in as parameters so callers control both.
func BuildPaymentRequest(request *models.PurchaseRequest, purchase Purchase, profile *models.PaymentProfile, merchantDomain, serviceURL string, now time.Time, visitorEmail string) OutboundPaymentPayload {
	email := purchase.Email
	if email == "" {
		email = visitorEmail
	}

	domain := profile.MerchantDomain
	if domain == "" {
		domain = merchantDomain
	}

	amount := purchase.Cost.String()

	payload := OutboundPaymentPayload{
		MerchantAccount: profile.MerchantAccount,
		MerchantDomain:  domain,
		ServiceURL:      serviceURL,
		OrderReference:  request.RequestKey,
		OrderDate:       now.Unix(),
		Amount:          amount,
		Currency:        purchase.Currency,
		ProductNames:    []string{purchase.Title},
		ProductPrices:   []string{amount},
		ProductCounts:   []string{"1"},
		ClientAccountID: email,
		ClientEmail:     email,
	}

	payload.MerchantSignature = SignFields(payload.signatureFields(), profile.SecretKey)

	return payload
}

// signatureFields returns the nine protocol-ordered fields covered by the
// outbound signature.
func (p OutboundPaymentPayload) signatureFields() []string {
	return []string{
		p.MerchantAccount,
		p.MerchantDomain,
		p.OrderReference,
		strconv.FormatInt(p.OrderDate, 10),
		p.Amount,
		p.Currency,
		strings.Join(p.ProductNames, ";"),
		strings.Join(p.ProductCounts, ";"),
		strings.Join(p.ProductPrices, ";"),
	}
}

// FormValues encodes the payload for the form-encoded gateway POST.
func (p OutboundPaymentPayload) FormValues() url.Values {
	values := url.Values{}
	values.Set("merchantAccount", p.MerchantAccount)
	values.Set("merchantDomainName", p.MerchantDomain)
	values.Set("serviceUrl", p.ServiceURL)
	values.Set("orderReference", p.OrderReference)
	values.Set("orderDate", strconv.FormatInt(p.OrderDate, 10))
	values.Set("amount", p.Amount)
	values.Set("currency", p.Currency)
	for _, name := range p.ProductNames {
		values.Add("productName[]", name)
	}
	for _, price := range p.ProductPrices {
		values.Add("productPrice[]", price)
	}
	for _, count := range p.ProductCounts {
		values.Add("productCount[]", count)
	}
	values.Set("clientAccountId", p.ClientAccountID)
	values.Set("clientEmail", p.ClientEmail)
	values.Set("merchantSignature", p.MerchantSignature)
	return values
}

// InitiationResult is the gateway's answer to a payment initiation: either a
// user-facing rejection reason or a redirect target for the buyer.
type InitiationResult struct {
	Reason      string
	RedirectURL string
}

// InitiatePayment posts the signed payload to the gateway and interprets its
// JSON response.
func (s *WayForPayService) InitiatePayment(ctx context.Context, payload OutboundPaymentPayload) (*InitiationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(payload.FormValues().Encode()))
	if err != nil {
		return nil, fmt.Errorf("wayforpay request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := wayforpayClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wayforpay request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var parsed struct {
		Reason string `json:"reason"`
		URL    string `json:"url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("wayforpay response: status %d, body: %s", resp.StatusCode, string(body))
	}

	if parsed.Reason == "" && parsed.URL == "" {
		return nil, errors.New("wayforpay response carries neither reason nor url")
	}

	return &InitiationResult{Reason: parsed.Reason, RedirectURL: parsed.URL}, nil
}

// ParseCallback decodes an inbound notification body into a CallbackState.
// Malformed JSON never fails: the state proceeds to validation with an empty
// input map and gets rejected there. The HTTP code is preset to 200 because
// the gateway retries aggressively on transport-level errors.
func ParseCallback(raw []byte, ip string) *CallbackState {
	state := &CallbackState{
		RawInput: raw,
		Input:    map[string]any{},
		IP:       ip,
		HTTPCode: http.StatusOK,
	}

	if len(raw) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()

		var input map[string]any
		if err := decoder.Decode(&input); err == nil && input != nil {
			state.Input = input
		}
	}

	state.TransactionID = inputString(state.Input, "orderReference")
	state.RequestKey = inputString(state.Input, "orderReference")
	state.SubscriberID = inputString(state.Input, "email")
	state.Status = inputString(state.Input, "transactionStatus")
	state.CostCurrency = inputString(state.Input, "currency")
	state.Signature = inputString(state.Input, "merchantSignature")

	if amount := inputString(state.Input, "amount"); amount != "" {
		if parsed, err := decimal.NewFromString(amount); err == nil {
			state.CostAmount = decimal.NewNullDecimal(parsed)
		}
	}

	return state
}

// inputString coerces a parsed JSON value to its wire representation.
// Numbers keep their exact literal so re-signing hashes the same bytes the
// gateway signed.
func inputString(input map[string]any, key string) string {
	switch v := input[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

// ValidateCallback runs the ordered validation pipeline over the state.
// Every stage may short-circuit with a terminal rejection, annotating the
// state's log fields; later stages assume earlier invariants hold, so the
// order is fixed.
func (s *WayForPayService) ValidateCallback(ctx context.Context, state *CallbackState) bool {
	stages := []func(context.Context, *CallbackState) bool{
		s.checkStatus,
		s.checkIdentifiers,
		s.checkReplay,
		s.checkSignature,
		s.checkCost,
	}

	for _, stage := range stages {
		if !stage(ctx, state) {
			return false
		}
	}

	s.derivePaymentResult(state)
	return true
}

// checkStatus silently ignores anything but an approved transaction. A
// non-approved status is the gateway's normal "not yet successful"
// notification, not an error.
func (s *WayForPayService) checkStatus(ctx context.Context, state *CallbackState) bool {
	if state.Status != statusApproved {
		state.LogType = ""
		state.LogMessage = ""
		return false
	}
	return true
}

func (s *WayForPayService) checkIdentifiers(ctx context.Context, state *CallbackState) bool {
	if state.TransactionID == "" || state.RequestKey == "" {
		state.LogType = LogTypeInfo
		state.LogMessage = "No Transaction ID or Request Key. No action to take."
		return false
	}
	return true
}

// checkReplay consults the transaction ledger. A matching record means the
// callback was already processed; re-delivery is expected under the
// gateway's at-least-once semantics and is ignored silently. This read is a
// fast path only: the unique index on transaction_records is what actually
// prevents double acceptance.
func (s *WayForPayService) checkReplay(ctx context.Context, state *CallbackState) bool {
	if state.TransactionID != "" && state.RequestKey != "" {
		var count int64
		err := s.db.WithContext(ctx).
			Model(&models.TransactionRecord{}).
			Where("provider_id = ? AND transaction_id = ?", WayForPayProviderID, state.TransactionID).
			Count(&count).Error
		if err == nil && count > 0 {
			state.LogType = ""
			state.LogMessage = ""
			return false
		}
		return true
	}

	state.LogType = LogTypeError
	state.LogMessage = "No transaction ID or signature. No action to take."
	return false
}

// checkSignature resolves the purchase request and its payment profile, then
// verifies the callback signature over the eight protocol-ordered fields of
// the notification itself.
func (s *WayForPayService) checkSignature(ctx context.Context, state *CallbackState) bool {
	var request models.PurchaseRequest
	err := s.db.WithContext(ctx).
		Preload("Profile").
		Where("request_key = ?", state.RequestKey).
		First(&request).Error
	if err == nil {
		state.PurchaseRequest = &request
		state.Profile = request.Profile
	}

	secret := ""
	if state.Profile != nil {
		secret = state.Profile.SecretKey
	}

	if secret == "" {
		state.LogType = LogTypeError
		state.LogMessage = "Invalid secret_key."
		return false
	}

	if VerifyFields(callbackSignatureFields(state.Input), secret, state.Signature) {
		return true
	}

	state.LogType = LogTypeError
	state.LogMessage = "Invalid signature."
	return false
}

// callbackSignatureFields returns the eight fields covered by the inbound
// signature, all taken from the callback payload.
func callbackSignatureFields(input map[string]any) []string {
	return []string{
		inputString(input, "merchantAccount"),
		inputString(input, "orderReference"),
		inputString(input, "amount"),
		inputString(input, "currency"),
		inputString(input, "authCode"),
		inputString(input, "cardPan"),
		inputString(input, "transactionStatus"),
		inputString(input, "reasonCode"),
	}
}

// checkCost compares the callback amount, rounded to two decimal places,
// against the recorded purchase cost. Currency comparison is exact and
// case-sensitive.
func (s *WayForPayService) checkCost(ctx context.Context, state *CallbackState) bool {
	request := state.PurchaseRequest

	if state.CostAmount.Valid &&
		state.CostAmount.Decimal.Round(2).Equal(request.CostAmount.Round(2)) &&
		state.CostCurrency == request.CostCurrency {
		return true
	}

	state.LogType = LogTypeError
	state.LogMessage = "Invalid cost amount or cost currency"
	return false
}

// derivePaymentResult maps the gateway status to a terminal result. Only
// "Approved" maps to anything; other statuses deliberately set no result.
func (s *WayForPayService) derivePaymentResult(state *CallbackState) {
	if state.Status == statusApproved {
		state.PaymentResult = PaymentResultReceived
	}
}

// CompleteTransaction records the transaction in the ledger and attaches the
// signed acknowledgement as the audit log message. The ledger insert relies
// on the store's unique constraint: losing the insert race downgrades the
// callback to a silent duplicate rejection.
func (s *WayForPayService) CompleteTransaction(ctx context.Context, state *CallbackState, now time.Time) bool {
	record := models.TransactionRecord{
		ProviderID:    WayForPayProviderID,
		TransactionID: state.TransactionID,
		RequestKey:    state.RequestKey,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		state.PaymentResult = PaymentResultNone
		state.LogType = LogTypeError
		state.LogMessage = fmt.Sprintf("Failed to record transaction: %v", result.Error)
		return false
	}

	if result.RowsAffected == 0 {
		state.PaymentResult = PaymentResultNone
		state.LogType = ""
		state.LogMessage = ""
		return false
	}

	ack := ComposeAck(state.RequestKey, now.Unix(), state.Profile.SecretKey)
	encoded, err := json.Marshal(ack)
	if err == nil {
		state.LogMessage = string(encoded)
	}

	return true
}

// AckMessage is the signed acknowledgement returned to the gateway on full
// acceptance. The signature covers the values in declaration order.
type AckMessage struct {
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Time           int64  `json:"time"`
	Signature      string `json:"signature"`
}

// ComposeAck builds and signs the acceptance acknowledgement.
func ComposeAck(requestKey string, serverTime int64, secret string) AckMessage {
	msg := AckMessage{
		OrderReference: requestKey,
		Status:         "accept",
		Time:           serverTime,
	}
	msg.Signature = SignFields([]string{
		msg.OrderReference,
		msg.Status,
		strconv.FormatInt(msg.Time, 10),
	}, secret)
	return msg
}

// LogDetails merges the parsed input with request metadata for audit
// persistence.
func (state *CallbackState) LogDetails(requestTime int64) map[string]any {
	details := make(map[string]any, len(state.Input)+3)
	for key, value := range state.Input {
		details[key] = value
	}
	details["ip"] = state.IP
	details["request_time"] = requestTime
	details["raw_input"] = string(state.RawInput)
	return details
}
