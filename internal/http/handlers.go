package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loantrack/internal/core"
	"loantrack/internal/notify"
	"loantrack/internal/remote/jsonbin"
	"loantrack/internal/session"
	"loantrack/internal/storage"
)

type credentialsRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

type loanRequest struct {
	UserName   string          `json:"userName"`
	Principal  decimal.Decimal `json:"principalAmount"`
	TermMonths int             `json:"termMonths"`
	StartDate  string          `json:"startDate"`
}

func (lr loanRequest) toInput() (core.LoanInput, error) {
	start := time.Now()
	if s := strings.TrimSpace(lr.StartDate); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return core.LoanInput{}, err
		}
		start = parsed
	}
	return core.LoanInput{
		UserName:   strings.TrimSpace(lr.UserName),
		Principal:  lr.Principal,
		TermMonths: lr.TermMonths,
		StartDate:  start,
	}, nil
}

type userRequest struct {
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
	PIN   string    `json:"pin"`
	Role  core.Role `json:"role"`
}

type sessionResponse struct {
	FirstRun     bool               `json:"firstRun"`
	User         *core.UserAccount  `json:"user,omitempty"`
	Status       session.SyncStatus `json:"syncStatus"`
	OfferedTerms []int              `json:"offeredTerms"`
}

type remoteSettingsRequest struct {
	APIKey string `json:"apiKey"`
	BinID  string `json:"binId"`
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}
	admin, err := s.session.SetupAdmin(r.Context(), req.Name, req.PIN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, admin)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}
	user, err := s.session.Login(req.Name, req.PIN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Refresh from the remote on every login. Failures (including a pull
	// already in flight) are advisory; the cached state keeps serving.
	_ = s.session.Pull(r.Context())
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{
		FirstRun:     s.session.FirstRun(),
		Status:       s.session.Status(),
		OfferedTerms: core.OfferedTerms,
	}
	if user, ok := s.session.CurrentUser(); ok {
		resp.User = &user
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans := s.session.VisibleLoans()
	if loans == nil {
		loans = []core.Loan{}
	}
	writeJSON(w, r, http.StatusOK, loans)
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !readJSON(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeErrorMessage(w, r, http.StatusUnprocessableEntity, "invalid start date")
		return
	}
	loan, err := s.session.AddLoan(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, loan)
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !readJSON(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeErrorMessage(w, r, http.StatusUnprocessableEntity, "invalid start date")
		return
	}
	loan, err := s.session.UpdateLoan(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, loan)
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteLoan(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleInstallment(w http.ResponseWriter, r *http.Request) {
	loan, err := s.session.ToggleInstallment(r.Context(),
		r.PathValue("id"), r.PathValue("installmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, loan)
}

// handleNotifyLink builds a WhatsApp deep link for a loan message. The link
// is returned to the caller, never opened server side.
func (s *Server) handleNotifyLink(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.CurrentUser()
	if !ok || user.Role != core.RoleAdmin {
		writeError(w, r, session.ErrNotAuthorized)
		return
	}

	var loan *core.Loan
	for _, l := range s.session.Loans() {
		if l.ID == r.PathValue("id") {
			found := l
			loan = &found
			break
		}
	}
	if loan == nil {
		writeError(w, r, session.ErrLoanNotFound)
		return
	}

	var borrower *core.UserAccount
	for _, u := range s.session.Users() {
		if strings.EqualFold(u.Name, loan.UserName) {
			found := u
			borrower = &found
			break
		}
	}
	if borrower == nil || borrower.Phone == "" {
		writeErrorMessage(w, r, http.StatusUnprocessableEntity, "borrower has no phone number")
		return
	}

	var message string
	switch kind := r.URL.Query().Get("type"); kind {
	case "settled":
		message = notify.LoanSettled(*loan)
	case "due":
		// Day-before reminder for the next unpaid installment.
		var next *core.Installment
		for i := range loan.Installments {
			if loan.Installments[i].Status == core.InstallmentPending {
				next = &loan.Installments[i]
				break
			}
		}
		if next == nil {
			writeErrorMessage(w, r, http.StatusUnprocessableEntity, "loan has no pending installments")
			return
		}
		message = notify.PaymentDue(*loan, *next)
	case "payment", "":
		msg, err := notify.PaymentReceived(*loan, r.URL.Query().Get("installment"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		message = msg
	default:
		writeErrorMessage(w, r, http.StatusUnprocessableEntity, "unknown message type")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{
		"link": notify.Link(borrower.Phone, message),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.CurrentUser()
	if !ok || user.Role != core.RoleAdmin {
		writeError(w, r, session.ErrNotAuthorized)
		return
	}
	users := s.session.Users()
	if users == nil {
		users = []core.UserAccount{}
	}
	writeJSON(w, r, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !readJSON(w, r, &req) {
		return
	}
	account := core.UserAccount{
		Name:  req.Name,
		Phone: req.Phone,
		PIN:   req.PIN,
		Role:  req.Role,
	}
	if err := s.session.AddUser(r.Context(), account); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, account)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteUser(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.CurrentUser()
	if !ok {
		writeError(w, r, session.ErrNotAuthorized)
		return
	}
	filter := r.URL.Query().Get("user")
	if user.Role != core.RoleAdmin {
		// Borrowers only see aggregates over their own loans.
		filter = user.Name
	}
	writeJSON(w, r, http.StatusOK, s.session.Stats(filter))
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Pull(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.session.Status())
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.session.Status())
}

// handleGetRemoteSettings returns the persisted remote connection settings.
func (s *Server) handleGetRemoteSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.CurrentUser()
	if !ok || user.Role != core.RoleAdmin {
		writeError(w, r, session.ErrNotAuthorized)
		return
	}
	cfg, _, err := s.session.RemoteConfig(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cfg)
}

// handlePutRemoteSettings persists jsonbin credentials and points the
// session at the new bin without a restart.
func (s *Server) handlePutRemoteSettings(w http.ResponseWriter, r *http.Request) {
	var req remoteSettingsRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.BinID = strings.TrimSpace(req.BinID)
	if req.APIKey == "" || req.BinID == "" {
		writeErrorMessage(w, r, http.StatusUnprocessableEntity, "apiKey and binId are required")
		return
	}

	cfg := storage.RemoteConfig{APIKey: req.APIKey, BinID: req.BinID}
	store := jsonbin.New("", cfg.APIKey, cfg.BinID)
	if err := s.session.ConfigureRemote(r.Context(), cfg, store); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cfg)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session.CurrentUser()
	if !ok || user.Role != core.RoleAdmin {
		writeError(w, r, session.ErrNotAuthorized)
		return
	}
	if err := s.session.ResetLocal(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
