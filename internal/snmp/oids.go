package snmp

// System group (1.3.6.1.2.1.1)
const (
	OIDSysDescr    = "1.3.6.1.2.1.1.1.0"
	OIDSysObjectID = "1.3.6.1.2.1.1.2.0"
	OIDSysUpTime   = "1.3.6.1.2.1.1.3.0"
	OIDSysContact  = "1.3.6.1.2.1.1.4.0"
	OIDSysName     = "1.3.6.1.2.1.1.5.0"
	OIDSysLocation = "1.3.6.1.2.1.1.6.0"
	OIDSysServices = "1.3.6.1.2.1.1.7.0"
)

// Interfaces group (1.3.6.1.2.1.2)
const (
	OIDIfNumber      = "1.3.6.1.2.1.2.1.0"
	OIDIfTable       = "1.3.6.1.2.1.2.2"
	OIDIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	OIDIfType        = "1.3.6.1.2.1.2.2.1.3"
	OIDIfMTU         = "1.3.6.1.2.1.2.2.1.4"
	OIDIfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	OIDIfPhysAddress = "1.3.6.1.2.1.2.2.1.6"
	OIDIfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	OIDIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	OIDIfInOctets    = "1.3.6.1.2.1.2.2.1.10"
	OIDIfOutOctets   = "1.3.6.1.2.1.2.2.1.16"
)

// SystemOIDs are fetched by GetSystemInfo
var SystemOIDs = []string{
	OIDSysDescr,
	OIDSysObjectID,
	OIDSysUpTime,
	OIDSysContact,
	OIDSysName,
	OIDSysLocation,
}

// normalizeOID strips the leading dot gosnmp puts on returned names
func normalizeOID(oid string) string {
	if len(oid) > 0 && oid[0] == '.' {
		return oid[1:]
	}
	return oid
}
