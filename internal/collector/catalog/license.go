// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package catalog

import goccyjson "github.com/goccy/go-json"

// perDeviceLicense is the shape GET /organizations/{id}/licenses/overview
// returns for organizations on the legacy per-device licensing model.
type perDeviceLicense struct {
	Status            string `json:"status"`
	ExpirationDate    string `json:"expirationDate"`
	LicensedDeviceCounts map[string]int `json:"licensedDeviceCounts"`
}

// coTerminationLicense is the shape returned for organizations on the
// newer co-termination model, where every license in the org shares one
// expiration date regardless of device count.
type coTerminationLicense struct {
	Status         string `json:"status"`
	ExpirationDate string `json:"expirationDate"`
}

// detectLicenseShape inspects which of the two known license response
// shapes body matches, per the Open Question decision recorded in
// DESIGN.md: the first field present decides the model; an unrecognized
// shape reports ok=false so the caller can log and skip rather than guess.
func detectLicenseShape(body []byte) (model, status string, ok bool) {
	var perDevice perDeviceLicense
	if err := goccyjson.Unmarshal(body, &perDevice); err == nil && len(perDevice.LicensedDeviceCounts) > 0 {
		return "per_device", perDevice.Status, true
	}

	var coTerm coTerminationLicense
	if err := goccyjson.Unmarshal(body, &coTerm); err == nil && coTerm.Status != "" {
		return "co_termination", coTerm.Status, true
	}

	return "", "", false
}
