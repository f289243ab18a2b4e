package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"flakeledger/core/types"
	"flakeledger/crypto"
	"flakeledger/native/flake"
)

const maxEventsPage = 1_000

type flakeCreateParams struct {
	ID                   uint64   `json:"id"`
	ExpectedParticipants []string `json:"expectedParticipants,omitempty"`
	FeeBps               uint32   `json:"feeBps"`
	FeeRecipient         string   `json:"feeRecipient,omitempty"`
	Beneficiary          string   `json:"beneficiary,omitempty"`
	Value                string   `json:"value,omitempty"`
}

type flakeStakeParams struct {
	ID          uint64 `json:"id"`
	Beneficiary string `json:"beneficiary,omitempty"`
	Value       string `json:"value"`
}

type flakeIDParams struct {
	ID uint64 `json:"id"`
}

type flakeResolveParams struct {
	ID     uint64 `json:"id"`
	Winner string `json:"winner"`
}

type flakeAddressParams struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
}

type flakeFeeRecipientParams struct {
	ID           uint64 `json:"id"`
	FeeRecipient string `json:"feeRecipient"`
}

type flakeRoleParams struct {
	Oracle string `json:"oracle,omitempty"`
	Owner  string `json:"owner,omitempty"`
}

type flakeValueParams struct {
	Value string `json:"value"`
}

type flakeEventsParams struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type flakeJSON struct {
	ID                uint64 `json:"id"`
	Creator           string `json:"creator"`
	State             string `json:"state"`
	FeeBps            uint32 `json:"feeBps"`
	FeeRecipient      string `json:"feeRecipient"`
	Winner            string `json:"winner,omitempty"`
	TotalStake        string `json:"totalStake"`
	LifetimeStake     string `json:"lifetimeStake"`
	DistributedPayout string `json:"distributedPayout"`
	DistributedFee    string `json:"distributedFee"`
	RefundedAmount    string `json:"refundedAmount"`
	CreatedAt         int64  `json:"createdAt"`
	ResolvedAt        int64  `json:"resolvedAt,omitempty"`
	CancelledAt       int64  `json:"cancelledAt,omitempty"`
}

type participantJSON struct {
	Address       string `json:"address"`
	Stake         string `json:"stake"`
	Participating bool   `json:"participating"`
	RefundClaimed bool   `json:"refundClaimed"`
}

type rolesJSON struct {
	Owner  string `json:"owner"`
	Oracle string `json:"oracle"`
	Vault  string `json:"vault"`
}

type amountResult struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) flakeMethods() map[string]method {
	return map[string]method{
		"flake_create":             {handler: s.handleFlakeCreate, authenticated: true},
		"flake_stake":              {handler: s.handleFlakeStake, authenticated: true},
		"flake_resolve":            {handler: s.handleFlakeResolve, authenticated: true},
		"flake_openRefunds":        {handler: s.handleFlakeOpenRefunds, authenticated: true},
		"flake_withdrawRefund":     {handler: s.handleFlakeWithdrawRefund, authenticated: true},
		"flake_setOracle":          {handler: s.handleFlakeSetOracle, authenticated: true},
		"flake_transferOwnership":  {handler: s.handleFlakeTransferOwnership, authenticated: true},
		"flake_updateFeeRecipient": {handler: s.handleFlakeUpdateFeeRecipient, authenticated: true},
		"flake_receive":            {handler: s.handleFlakeReceive, authenticated: true},
		"flake_get":                {handler: s.handleFlakeGet},
		"flake_participants":       {handler: s.handleFlakeParticipants},
		"flake_stakeOf":            {handler: s.handleFlakeStakeOf},
		"flake_isParticipant":      {handler: s.handleFlakeIsParticipant},
		"flake_hasClaimedRefund":   {handler: s.handleFlakeHasClaimedRefund},
		"flake_roles":              {handler: s.handleFlakeRoles},
		"flake_events":             {handler: s.handleFlakeEvents},
		"bank_balance":             {handler: s.handleBankBalance},
	}
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	dec := json.NewDecoder(strings.NewReader(string(req.Params[0])))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}

func invalidParam(field string, err error) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s", field), Data: err.Error()}
}

// parseOptionalAddress maps an empty string onto the zero identity, which the
// ledger reads as "unspecified".
func parseOptionalAddress(field, value string) ([20]byte, *RPCError) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	return parseRequiredAddress(field, value)
}

func parseRequiredAddress(field, value string) ([20]byte, *RPCError) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, invalidParam(field, err)
	}
	return addr, nil
}

func parseValue(value string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 0)
	if !ok {
		return nil, invalidParam("value", fmt.Errorf("%q is not an integer amount", value))
	}
	if amount.Sign() < 0 {
		return nil, invalidParam("value", errors.New("value must be non-negative"))
	}
	return amount, nil
}

func mustCaller(ctx context.Context) [20]byte {
	caller, _ := callerFrom(ctx)
	return caller
}

// ledgerError maps a ledger failure onto its JSON-RPC code.
func ledgerError(err error) *RPCError {
	code := codeFlakeInternal
	message := err.Error()
	switch flake.Category(err) {
	case flake.CategoryValidation:
		code = codeFlakeInvalidParams
	case flake.CategoryNotFound:
		code = codeFlakeNotFound
	case flake.CategoryAuthorization:
		code = codeFlakeForbidden
	case flake.CategoryConflict:
		code = codeFlakeConflict
	case flake.CategoryState:
		code = codeFlakeState
	case flake.CategoryTransfer:
		code = codeFlakeTransfer
	case flake.CategoryReentrancy:
		code = codeFlakeReentrant
	default:
		message = "internal error"
	}
	return &RPCError{Code: code, Message: message, Data: string(flake.Category(err))}
}

func statusForCode(code int) int {
	switch code {
	case codeInvalidParams, codeFlakeInvalidParams:
		return http.StatusBadRequest
	case codeFlakeNotFound:
		return http.StatusNotFound
	case codeFlakeForbidden:
		return http.StatusForbidden
	case codeFlakeConflict, codeFlakeState, codeFlakeReentrant:
		return http.StatusConflict
	case codeFlakeTransfer:
		return http.StatusFailedDependency
	case codeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func formatFlake(f *flake.Flake) flakeJSON {
	out := flakeJSON{
		ID:                f.ID,
		Creator:           crypto.FormatAddress(f.Creator),
		State:             f.State.String(),
		FeeBps:            f.FeeBps,
		FeeRecipient:      crypto.FormatAddress(f.FeeRecipient),
		TotalStake:        f.TotalStake.String(),
		LifetimeStake:     f.LifetimeStake.String(),
		DistributedPayout: f.DistributedPayout.String(),
		DistributedFee:    f.DistributedFee.String(),
		RefundedAmount:    f.RefundedAmount.String(),
		CreatedAt:         f.CreatedAt,
		ResolvedAt:        f.ResolvedAt,
		CancelledAt:       f.CancelledAt,
	}
	if f.Winner != ([20]byte{}) {
		out.Winner = crypto.FormatAddress(f.Winner)
	}
	return out
}

func (s *Server) handleFlakeCreate(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeCreateParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	value, rpcErr := parseValue(params.Value)
	if rpcErr != nil {
		return nil, rpcErr
	}
	expected := make([][20]byte, 0, len(params.ExpectedParticipants))
	for i, raw := range params.ExpectedParticipants {
		addr, rpcErr := parseRequiredAddress(fmt.Sprintf("expectedParticipants[%d]", i), raw)
		if rpcErr != nil {
			return nil, rpcErr
		}
		expected = append(expected, addr)
	}
	feeRecipient, rpcErr := parseOptionalAddress("feeRecipient", params.FeeRecipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	beneficiary, rpcErr := parseOptionalAddress("beneficiary", params.Beneficiary)
	if rpcErr != nil {
		return nil, rpcErr
	}
	call := flake.Call{Caller: mustCaller(ctx), Value: value}
	err := s.node.FlakeCreate(call, flake.CreateParams{
		ID:                   params.ID,
		ExpectedParticipants: expected,
		FeeBps:               params.FeeBps,
		FeeRecipient:         feeRecipient,
		Beneficiary:          beneficiary,
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	created, err := s.node.FlakeGet(params.ID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatFlake(created), nil
}

func (s *Server) handleFlakeStake(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeStakeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	value, rpcErr := parseValue(params.Value)
	if rpcErr != nil {
		return nil, rpcErr
	}
	caller := mustCaller(ctx)
	beneficiary, rpcErr := parseOptionalAddress("beneficiary", params.Beneficiary)
	if rpcErr != nil {
		return nil, rpcErr
	}
	total, err := s.node.FlakeStake(flake.Call{Caller: caller, Value: value}, params.ID, beneficiary)
	if err != nil {
		return nil, ledgerError(err)
	}
	if beneficiary == ([20]byte{}) {
		beneficiary = caller
	}
	return amountResult{ID: params.ID, Address: crypto.FormatAddress(beneficiary), Amount: total.String()}, nil
}

func (s *Server) handleFlakeResolve(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeResolveParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	winner, rpcErr := parseRequiredAddress("winner", params.Winner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.FlakeResolve(flake.Call{Caller: mustCaller(ctx)}, params.ID, winner); err != nil {
		return nil, ledgerError(err)
	}
	return s.flakeResult(params.ID)
}

func (s *Server) handleFlakeOpenRefunds(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if err := s.node.FlakeOpenRefunds(flake.Call{Caller: mustCaller(ctx)}, params.ID); err != nil {
		return nil, ledgerError(err)
	}
	return s.flakeResult(params.ID)
}

func (s *Server) handleFlakeWithdrawRefund(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	caller := mustCaller(ctx)
	amount, err := s.node.FlakeWithdrawRefund(flake.Call{Caller: caller}, params.ID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return amountResult{ID: params.ID, Address: crypto.FormatAddress(caller), Amount: amount.String()}, nil
}

func (s *Server) handleFlakeSetOracle(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeRoleParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	oracle, rpcErr := parseRequiredAddress("oracle", params.Oracle)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.FlakeSetOracle(flake.Call{Caller: mustCaller(ctx)}, oracle); err != nil {
		return nil, ledgerError(err)
	}
	return s.rolesResult()
}

func (s *Server) handleFlakeTransferOwnership(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeRoleParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, rpcErr := parseRequiredAddress("owner", params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.FlakeTransferOwnership(flake.Call{Caller: mustCaller(ctx)}, owner); err != nil {
		return nil, ledgerError(err)
	}
	return s.rolesResult()
}

func (s *Server) handleFlakeUpdateFeeRecipient(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeFeeRecipientParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	recipient, rpcErr := parseRequiredAddress("feeRecipient", params.FeeRecipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.FlakeUpdateFeeRecipient(flake.Call{Caller: mustCaller(ctx)}, params.ID, recipient); err != nil {
		return nil, ledgerError(err)
	}
	return s.flakeResult(params.ID)
}

func (s *Server) handleFlakeReceive(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeValueParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	value, rpcErr := parseValue(params.Value)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.FlakeReceive(flake.Call{Caller: mustCaller(ctx), Value: value}); err != nil {
		return nil, ledgerError(err)
	}
	return true, nil
}

func (s *Server) flakeResult(id uint64) (interface{}, *RPCError) {
	f, err := s.node.FlakeGet(id)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatFlake(f), nil
}

func (s *Server) rolesResult() (interface{}, *RPCError) {
	roles, err := s.node.FlakeRoles()
	if err != nil {
		return nil, ledgerError(err)
	}
	return rolesJSON{
		Owner:  crypto.FormatAddress(roles.Owner),
		Oracle: crypto.FormatAddress(roles.Oracle),
		Vault:  crypto.FormatAddress(s.node.VaultAddress()),
	}, nil
}

func (s *Server) handleFlakeGet(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	return s.flakeResult(params.ID)
}

func (s *Server) handleFlakeParticipants(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params flakeIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	participants, err := s.node.FlakeParticipants(params.ID)
	if err != nil {
		return nil, ledgerError(err)
	}
	out := make([]participantJSON, 0, len(participants))
	for _, p := range participants {
		out = append(out, participantJSON{
			Address:       crypto.FormatAddress(p.Address),
			Stake:         p.Stake.String(),
			Participating: p.Participating,
			RefundClaimed: p.RefundClaimed,
		})
	}
	return out, nil
}

func (s *Server) decodeAddressQuery(req *RPCRequest) (uint64, [20]byte, *RPCError) {
	var params flakeAddressParams
	if err := decodeParams(req, &params); err != nil {
		return 0, [20]byte{}, err
	}
	addr, rpcErr := parseRequiredAddress("address", params.Address)
	if rpcErr != nil {
		return 0, [20]byte{}, rpcErr
	}
	return params.ID, addr, nil
}

func (s *Server) handleFlakeStakeOf(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	id, addr, rpcErr := s.decodeAddressQuery(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	stake, err := s.node.FlakeStakeOf(id, addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return amountResult{ID: id, Address: crypto.FormatAddress(addr), Amount: stake.String()}, nil
}

func (s *Server) handleFlakeIsParticipant(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	id, addr, rpcErr := s.decodeAddressQuery(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.node.FlakeIsParticipant(id, addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return ok, nil
}

func (s *Server) handleFlakeHasClaimedRefund(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	id, addr, rpcErr := s.decodeAddressQuery(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.node.FlakeHasClaimedRefund(id, addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return ok, nil
}

func (s *Server) handleFlakeRoles(_ context.Context, _ *RPCRequest) (interface{}, *RPCError) {
	return s.rolesResult()
}

func (s *Server) handleFlakeEvents(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	params := flakeEventsParams{Limit: 100}
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit <= 0 || params.Limit > maxEventsPage {
		params.Limit = maxEventsPage
	}
	evts := s.node.Events(params.From, params.Limit)
	if evts == nil {
		evts = []*types.Event{}
	}
	return evts, nil
}

func (s *Server) handleBankBalance(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseRequiredAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: "balance lookup failed", Data: err.Error()}
	}
	return balanceResult{Address: crypto.FormatAddress(addr), Balance: balance.String()}, nil
}
