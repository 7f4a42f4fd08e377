package mikrotik

import (
	"fmt"
	"strconv"

	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
)

// QueueSpec describes a simple queue. Bandwidth values are Mbps.
type QueueSpec struct {
	Name                   string
	Download               int
	Upload                 int
	BurstLimitDownload     *int
	BurstLimitUpload       *int
	BurstThresholdDownload *int
	BurstThresholdUpload   *int
	BurstTime              *int
	Priority               int
}

func QueueSpecFor(pkg *productdomain.Package) QueueSpec {
	return QueueSpec{
		Name:                   pkg.QueueName,
		Download:               pkg.BandwidthDownload,
		Upload:                 pkg.BandwidthUpload,
		BurstLimitDownload:     pkg.BurstLimitDownload,
		BurstLimitUpload:       pkg.BurstLimitUpload,
		BurstThresholdDownload: pkg.BurstThresholdDownload,
		BurstThresholdUpload:   pkg.BurstThresholdUpload,
		BurstTime:              pkg.BurstTime,
		Priority:               pkg.Priority,
	}
}

func (q QueueSpec) fields() map[string]string {
	f := map[string]string{
		"name":      q.Name,
		"max-limit": pair(q.Download, q.Upload),
	}
	if q.Priority > 0 {
		p := strconv.Itoa(q.Priority)
		f["priority"] = p + "/" + p
	}
	if q.BurstLimitDownload != nil && q.BurstLimitUpload != nil {
		f["burst-limit"] = pair(*q.BurstLimitDownload, *q.BurstLimitUpload)
	}
	if q.BurstThresholdDownload != nil && q.BurstThresholdUpload != nil {
		f["burst-threshold"] = pair(*q.BurstThresholdDownload, *q.BurstThresholdUpload)
	}
	if q.BurstTime != nil {
		f["burst-time"] = fmt.Sprintf("%ds/%ds", *q.BurstTime, *q.BurstTime)
	}
	return f
}

// ProfileSpec describes a PPP profile. Its rate-limit is written upload first.
type ProfileSpec struct {
	Name     string
	Download int
	Upload   int
}

func ProfileSpecFor(pkg *productdomain.Package) ProfileSpec {
	return ProfileSpec{Name: pkg.QueueName, Download: pkg.BandwidthDownload, Upload: pkg.BandwidthUpload}
}

func (p ProfileSpec) fields() map[string]string {
	return map[string]string{
		"name":       p.Name,
		"rate-limit": pair(p.Upload, p.Download),
	}
}

// SecretSpec is a PPPoE secret.
type SecretSpec struct {
	Name          string
	Password      string
	Profile       string
	Comment       string
	RemoteAddress string
}

func (s SecretSpec) fields() map[string]string {
	f := map[string]string{
		"name":     s.Name,
		"password": s.Password,
		"service":  "pppoe",
		"profile":  s.Profile,
		"comment":  s.Comment,
	}
	if s.RemoteAddress != "" {
		f["remote-address"] = s.RemoteAddress
	}
	return f
}

type SecretUpdate struct {
	Password      *string
	Profile       *string
	Comment       *string
	RemoteAddress *string
}

func (u SecretUpdate) fields() map[string]string {
	f := map[string]string{}
	if u.Password != nil {
		f["password"] = *u.Password
	}
	if u.Profile != nil {
		f["profile"] = *u.Profile
	}
	if u.Comment != nil {
		f["comment"] = *u.Comment
	}
	if u.RemoteAddress != nil {
		f["remote-address"] = *u.RemoteAddress
	}
	return f
}

// CustomerComment is the secret comment that ties a router entry to a customer.
func CustomerComment(customerCode string) string {
	return "Customer: " + customerCode
}

func pair(first, second int) string {
	return fmt.Sprintf("%dM/%dM", first, second)
}
