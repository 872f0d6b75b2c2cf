package bot

import (
	"fmt"
	"strconv"
	"strings"

	"market_bot/internal/price"
)

// ParseIDArg extracts a numeric watch ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("informe o id do monitoramento")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id invalido %q", s)
	}
	return id, nil
}

// ParsePriceArgs parses "<id> <valor>". A zero value clears the ceiling and yields nil.
func ParsePriceArgs(args string) (int64, *float64, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, nil, fmt.Errorf("uso: /preco <id> <valor> (0 remove o limite)")
	}
	id, err := ParseIDArg(parts[0])
	if err != nil {
		return 0, nil, err
	}
	v, ok := price.Parse(strings.Join(parts[1:], " "))
	if !ok || v < 0 {
		return 0, nil, fmt.Errorf("valor invalido %q", strings.Join(parts[1:], " "))
	}
	if v == 0 {
		return id, nil, nil
	}
	return id, &v, nil
}

// ParseFilterCallback parses keyboard callback data of the form "f:<id>:<key>:<value>".
func ParseFilterCallback(data string) (id int64, key, value string, err error) {
	parts := strings.SplitN(data, ":", 4)
	if len(parts) != 4 || parts[0] != "f" {
		return 0, "", "", fmt.Errorf("unexpected callback data %q", data)
	}
	id, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("invalid watch id in callback %q", data)
	}
	if parts[2] == "" {
		return 0, "", "", fmt.Errorf("missing filter key in callback %q", data)
	}
	return id, parts[2], parts[3], nil
}
