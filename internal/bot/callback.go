package bot

import "strings"

// parseCallback разбирает callback_data вида "action" или "action:arg".
// Двоеточия внутри аргумента не разрезаются: "refresh:durov's cap" ->
// ("refresh", "durov's cap").
func parseCallback(data string) (action, arg string) {
	idx := strings.IndexByte(data, ':')
	if idx < 0 {
		return data, ""
	}
	return data[:idx], data[idx+1:]
}
