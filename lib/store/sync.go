package store

import "sort"

// SyncResponse is the answer of a reconcile request, keyed by record ID.
//   - Missing: records the remote has and the caller did not list, as raw record text
//   - Unknown: IDs the caller listed that the remote does not have
type SyncResponse struct {
	Missing map[string]string `json:"missing"`
	Unknown []string          `json:"unknown"`
}

// Diff computes the SyncResponse a remote holding records answers for the local IDs.
// Unknown is sorted and free of duplicates.
func Diff(local []string, records map[string]string) SyncResponse {
	have := make(map[string]struct{}, len(local))
	for _, id := range local {
		have[id] = struct{}{}
	}

	resp := SyncResponse{Missing: map[string]string{}, Unknown: []string{}}
	for id, record := range records {
		if _, ok := have[id]; !ok {
			resp.Missing[id] = record
		}
	}
	for id := range have {
		if _, ok := records[id]; !ok {
			resp.Unknown = append(resp.Unknown, id)
		}
	}
	sort.Strings(resp.Unknown)
	return resp
}
