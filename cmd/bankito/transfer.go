package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

const transferUsage = "SCENARIO FROM_ACCOUNT_NAME DESTINATION_ACCOUNT_ID AMOUNT [DESCRIPTION...]"

// parseTransferArgs reads SCENARIO FROM_ACCOUNT_NAME DESTINATION_ACCOUNT_ID
// AMOUNT, optionally followed by a description.
func parseTransferArgs(args []string) (usecase.TransferRequest, error) {
	if len(args) < 4 {
		return usecase.TransferRequest{}, fmt.Errorf("%w: expected %s", domain.ErrInvalidTransfer, transferUsage)
	}

	options, err := domain.ParseScenario(args[0])
	if err != nil {
		return usecase.TransferRequest{}, err
	}

	destination, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return usecase.TransferRequest{}, fmt.Errorf("%w: destination account id %q is not a number", domain.ErrInvalidTransfer, args[2])
	}

	amount, err := domain.ParseAmount(args[3])
	if err != nil {
		return usecase.TransferRequest{}, fmt.Errorf("%w: %w", domain.ErrInvalidTransfer, err)
	}

	return usecase.TransferRequest{
		FromName:      args[1],
		DestinationID: destination,
		Amount:        amount,
		Description:   strings.Join(args[4:], " "),
		Options:       options,
	}, nil
}
