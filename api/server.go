package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evoting-ledger/encryption"
	"evoting-ledger/models"
	"evoting-ledger/registry"
	"evoting-ledger/service"
	"evoting-ledger/storage"
	"evoting-ledger/token"
)

// Server exposes the election operations over HTTP JSON. It is the host
// layer: it verifies request signatures and hands recovered caller
// identities to the engine, which only checks membership and ownership.
type Server struct {
	svc    *service.ElectionService
	oracle registry.IdentityOracle
	crypto *encryption.CryptoService
	mux    *http.ServeMux
}

func NewServer(svc *service.ElectionService, oracle registry.IdentityOracle, promRegistry *prometheus.Registry) *Server {
	s := &Server{
		svc:    svc,
		oracle: oracle,
		crypto: encryption.NewCryptoService(),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/keys", s.handleGenerateKeys)
	s.mux.HandleFunc("/api/attest", s.handleAttest)
	s.mux.HandleFunc("/api/election", s.handleElection)
	s.mux.HandleFunc("/api/election/activate", s.handleActivateElection)
	s.mux.HandleFunc("/api/election/finalize", s.handleFinalizeElection)
	s.mux.HandleFunc("/api/candidate", s.handleCandidate)
	s.mux.HandleFunc("/api/voter/verify", s.handleVerifyVoter)
	s.mux.HandleFunc("/api/vote", s.handleCastVote)
	s.mux.HandleFunc("/api/audit", s.handleAudit)
	s.mux.HandleFunc("/api/receipt", s.handleVerifyReceipt)
	s.mux.HandleFunc("/api/credential", s.handleGetCredential)
	s.mux.HandleFunc("/api/ballot", s.handleGetBallot)
	s.mux.HandleFunc("/api/journal", s.handleValidateJournal)
	if promRegistry != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	return s
}

// Handler returns the server's root handler, with request correlation.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		log.Printf("request %s: %s %s", requestID, r.Method, r.URL.Path)
		s.mux.ServeHTTP(w, r)
	})
}

// SignaturePayload builds the canonical string a caller signs for an
// operation: the operation name and its fields joined with "|". The digest
// to sign is the Keccak256 hash of this payload.
func SignaturePayload(parts ...string) []byte {
	return []byte(strings.Join(parts, "|"))
}

// recoverCaller verifies the request signature over the canonical payload
// and returns the signer's address.
func (s *Server) recoverCaller(signature string, parts ...string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, errors.New("invalid signature encoding")
	}
	digest := s.crypto.Keccak256(SignaturePayload(parts...))
	return s.crypto.RecoverSigner(digest, sig)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidCommissionerCount),
		errors.Is(err, service.ErrInvalidElectionPeriod),
		errors.Is(err, service.ErrNameTooLong),
		errors.Is(err, service.ErrInvalidNIK),
		errors.Is(err, service.ErrInvalidIPFSHash),
		errors.Is(err, service.ErrInvalidConfidenceScore),
		errors.Is(err, service.ErrOverflow):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotCommissioner),
		errors.Is(err, service.ErrNotAuthority),
		errors.Is(err, token.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrExists),
		errors.Is(err, service.ErrElectionAlreadyActive),
		errors.Is(err, service.ErrElectionNotActive),
		errors.Is(err, service.ErrElectionNotStarted),
		errors.Is(err, service.ErrElectionStillActive),
		errors.Is(err, service.ErrRegistrationClosed),
		errors.Is(err, service.ErrAlreadyVoted),
		errors.Is(err, service.ErrVoterNotVerified),
		errors.Is(err, service.ErrVotingPeriodInvalid),
		errors.Is(err, token.ErrInsufficientBalance):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

type GenerateKeysResponse struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func (s *Server) handleGenerateKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	privateKey, err := s.crypto.GenerateKeyPair()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateKeysResponse{
		Address:    s.crypto.AddressOf(privateKey).Hex(),
		PublicKey:  hexutil.Encode(ethcrypto.FromECDSAPub(&privateKey.PublicKey)),
		PrivateKey: hexutil.Encode(ethcrypto.FromECDSA(privateKey)),
	})
}

func (s *Server) handleAttest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	attestation, err := s.oracle.Attest(r.URL.Query().Get("nik"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		NIK             string `json:"nik"`
		BiometricHash   string `json:"biometric_hash"`
		PhotoRef        string `json:"photo_ref"`
		Timestamp       int64  `json:"timestamp"`
		ConfidenceScore uint8  `json:"confidence_score"`
	}{
		NIK:             attestation.NIK,
		BiometricHash:   hexutil.Encode(attestation.BiometricHash[:]),
		PhotoRef:        attestation.PhotoRef,
		Timestamp:       attestation.Timestamp,
		ConfidenceScore: attestation.ConfidenceScore,
	})
}

type CreateElectionRequest struct {
	Name               string   `json:"name"`
	StartTime          int64    `json:"start_time"`
	EndTime            int64    `json:"end_time"`
	Commissioners      []string `json:"commissioners"`
	RequiredSignatures uint8    `json:"required_signatures"`
	Signature          string   `json:"signature"`
}

type CreateElectionResponse struct {
	Election string `json:"election"`
}

func (s *Server) handleElection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetElection(w, r)
	case http.MethodPost:
		s.handleCreateElection(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req CreateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	authority, err := s.recoverCaller(req.Signature,
		"create_election", req.Name,
		strconv.FormatInt(req.StartTime, 10), strconv.FormatInt(req.EndTime, 10))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	commissioners := make([]common.Address, 0, len(req.Commissioners))
	for _, c := range req.Commissioners {
		if !common.IsHexAddress(c) {
			http.Error(w, "Invalid commissioner address", http.StatusBadRequest)
			return
		}
		commissioners = append(commissioners, common.HexToAddress(c))
	}

	addr, err := s.svc.CreateElection(authority, req.Name, req.StartTime, req.EndTime,
		commissioners, req.RequiredSignatures)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateElectionResponse{Election: addr.Hex()})
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	addr, err := models.AddressFromHex(r.URL.Query().Get("address"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	election, err := s.svc.GetElection(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, election)
}

type ManageElectionRequest struct {
	Election  string `json:"election"`
	Signature string `json:"signature"`
}

func (s *Server) handleActivateElection(w http.ResponseWriter, r *http.Request) {
	s.manageElection(w, r, "activate_election", s.svc.ActivateElection)
}

func (s *Server) handleFinalizeElection(w http.ResponseWriter, r *http.Request) {
	s.manageElection(w, r, "finalize_election", s.svc.FinalizeElection)
}

func (s *Server) manageElection(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	apply func(common.Address, models.Address) error,
) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ManageElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	electionAddr, err := models.AddressFromHex(req.Election)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	commissioner, err := s.recoverCaller(req.Signature, operation, req.Election)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err := apply(commissioner, electionAddr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type RegisterCandidateRequest struct {
	Election    string `json:"election"`
	Name        string `json:"name"`
	CandidateID uint32 `json:"candidate_id"`
	Signature   string `json:"signature"`
}

type RegisterCandidateResponse struct {
	Candidate string `json:"candidate"`
}

func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetCandidate(w, r)
	case http.MethodPost:
		s.handleRegisterCandidate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRegisterCandidate(w http.ResponseWriter, r *http.Request) {
	var req RegisterCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	electionAddr, err := models.AddressFromHex(req.Election)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	authority, err := s.recoverCaller(req.Signature,
		"register_candidate", req.Election,
		strconv.FormatUint(uint64(req.CandidateID), 10), req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	addr, err := s.svc.RegisterCandidate(authority, electionAddr, req.Name, req.CandidateID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RegisterCandidateResponse{Candidate: addr.Hex()})
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	electionAddr, err := models.AddressFromHex(r.URL.Query().Get("election"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
	if err != nil {
		http.Error(w, "Invalid candidate id", http.StatusBadRequest)
		return
	}
	candidate, err := s.svc.GetCandidate(electionAddr, uint32(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

type VerifyVoterRequest struct {
	Election              string `json:"election"`
	NIK                   string `json:"nik"`
	BiometricHash         string `json:"biometric_hash"`
	PhotoRef              string `json:"photo_ref"`
	VerificationTimestamp int64  `json:"verification_timestamp"`
	ConfidenceScore       uint8  `json:"confidence_score"`
	Signature             string `json:"signature"`
}

type VerifyVoterResponse struct {
	Voter            string `json:"voter"`
	VerificationCode string `json:"verification_code"`
	TokenBalance     uint64 `json:"token_balance"`
}

func (s *Server) handleVerifyVoter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VerifyVoterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	electionAddr, err := models.AddressFromHex(req.Election)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var biometricHash [32]byte
	hashBytes, err := hexutil.Decode(req.BiometricHash)
	if err != nil || len(hashBytes) != len(biometricHash) {
		http.Error(w, "Invalid biometric hash", http.StatusBadRequest)
		return
	}
	copy(biometricHash[:], hashBytes)

	voter, err := s.recoverCaller(req.Signature, "verify_voter", req.Election, req.NIK)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	credential, err := s.svc.VerifyVoter(voter, electionAddr, req.NIK, biometricHash,
		req.PhotoRef, req.VerificationTimestamp, req.ConfidenceScore)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.svc.TokenBalance(electionAddr, voter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyVoterResponse{
		Voter:            voter.Hex(),
		VerificationCode: credential.VerificationCode,
		TokenBalance:     balance,
	})
}

type CastVoteRequest struct {
	Election      string `json:"election"`
	CandidateID   uint32 `json:"candidate_id"`
	EncryptedVote string `json:"encrypted_vote"`
	Signature     string `json:"signature"`
}

type CastVoteResponse struct {
	BallotSequence      uint64 `json:"ballot_sequence"`
	Timestamp           int64  `json:"timestamp"`
	VerificationReceipt string `json:"verification_receipt"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	electionAddr, err := models.AddressFromHex(req.Election)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload [models.EncryptedVoteSize]byte
	payloadBytes, err := hexutil.Decode(req.EncryptedVote)
	if err != nil || len(payloadBytes) != len(payload) {
		http.Error(w, "Invalid encrypted vote payload", http.StatusBadRequest)
		return
	}
	copy(payload[:], payloadBytes)

	voter, err := s.recoverCaller(req.Signature,
		"cast_vote", req.Election,
		strconv.FormatUint(uint64(req.CandidateID), 10), req.EncryptedVote)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	ballot, err := s.svc.CastVote(voter, electionAddr, req.CandidateID, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CastVoteResponse{
		BallotSequence:      ballot.Sequence,
		Timestamp:           ballot.Timestamp,
		VerificationReceipt: ballot.VerificationReceipt,
	})
}

type AuditRequest struct {
	Election  string `json:"election"`
	Voter     string `json:"voter"`
	Signature string `json:"signature"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	electionAddr, err := models.AddressFromHex(req.Election)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !common.IsHexAddress(req.Voter) {
		http.Error(w, "Invalid voter address", http.StatusBadRequest)
		return
	}
	commissioner, err := s.recoverCaller(req.Signature, "audit_verification", req.Election, req.Voter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	audit, err := s.svc.AuditVerification(commissioner, electionAddr, common.HexToAddress(req.Voter))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		NIKHash               string `json:"nik_hash"`
		BiometricHash         string `json:"biometric_hash"`
		ConfidenceScore       uint8  `json:"confidence_score"`
		VerificationTimestamp int64  `json:"verification_timestamp"`
		HasVoted              bool   `json:"has_voted"`
		IsVerified            bool   `json:"is_verified"`
	}{
		NIKHash:               hexutil.Encode(audit.NIKHash[:]),
		BiometricHash:         hexutil.Encode(audit.BiometricHash[:]),
		ConfidenceScore:       audit.ConfidenceScore,
		VerificationTimestamp: audit.VerificationTimestamp,
		HasVoted:              audit.HasVoted,
		IsVerified:            audit.IsVerified,
	})
}

func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	electionAddr, err := models.AddressFromHex(r.URL.Query().Get("election"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	voterParam := r.URL.Query().Get("voter")
	if !common.IsHexAddress(voterParam) {
		http.Error(w, "Invalid voter address", http.StatusBadRequest)
		return
	}
	sequence, err := strconv.ParseUint(r.URL.Query().Get("sequence"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ballot sequence", http.StatusBadRequest)
		return
	}

	receipt, err := s.svc.VerifyBallotReceipt(common.HexToAddress(voterParam), electionAddr, sequence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	electionAddr, err := models.AddressFromHex(r.URL.Query().Get("election"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	voterParam := r.URL.Query().Get("voter")
	if !common.IsHexAddress(voterParam) {
		http.Error(w, "Invalid voter address", http.StatusBadRequest)
		return
	}
	credential, err := s.svc.GetCredential(electionAddr, common.HexToAddress(voterParam))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credential)
}

func (s *Server) handleGetBallot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	electionAddr, err := models.AddressFromHex(r.URL.Query().Get("election"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sequence, err := strconv.ParseUint(r.URL.Query().Get("sequence"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ballot sequence", http.StatusBadRequest)
		return
	}
	ballot, err := s.svc.GetBallot(electionAddr, sequence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ballot)
}

func (s *Server) handleValidateJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	electionAddr, err := models.AddressFromHex(r.URL.Query().Get("election"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	count, err := s.svc.ValidateJournal(electionAddr)
	if err != nil {
		writeJSON(w, http.StatusOK, struct {
			IsValid bool   `json:"is_valid"`
			Error   string `json:"error"`
		}{IsValid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		IsValid bool   `json:"is_valid"`
		Entries uint64 `json:"entries"`
	}{IsValid: true, Entries: count})
}
