package ingest

import (
	"fmt"
	"strings"

	"tlwatch/internal/trustlist/models"
)

const (
	statusGranted   = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/granted"
	statusWithdrawn = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/withdrawn"
	typeQC          = "http://uri.etsi.org/TrstSvc/Svctype/CA/QC"
)

func lotlXML(pointers ...models.Pointer) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<TrustServiceStatusList xmlns="http://uri.etsi.org/02231/v2#">
  <SchemeInformation><PointersToOtherTSL>`)
	for _, p := range pointers {
		fmt.Fprintf(&b, `
    <OtherTSLPointer>
      <TSLLocation>%s</TSLLocation>
      <AdditionalInformation><OtherInformation><SchemeTerritory>%s</SchemeTerritory></OtherInformation></AdditionalInformation>
    </OtherTSLPointer>`, p.TLURL, p.CountryCode)
	}
	b.WriteString(`
  </PointersToOtherTSL></SchemeInformation>
</TrustServiceStatusList>`)
	return []byte(b.String())
}

type fixtureService struct {
	Type   string
	Name   string
	Status string
}

// tlXML renders a Trusted List with one provider per country under the ns1 prefix.
func tlXML(provider string, services ...fixtureService) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<ns1:TrustServiceStatusList xmlns:ns1="http://uri.etsi.org/02231/v2#">
  <ns1:TrustServiceProviderList>
    <ns1:TrustServiceProvider>
      <ns1:TSPInformation>
        <ns1:TSPName><ns1:Name xml:lang="en">%s</ns1:Name></ns1:TSPName>
        <ns1:TSPInformationURI><ns1:URI xml:lang="en">https://tsp.example/%s</ns1:URI></ns1:TSPInformationURI>
      </ns1:TSPInformation>
      <ns1:TSPServices>`, provider, strings.ToLower(provider))
	for _, s := range services {
		fmt.Fprintf(&b, `
        <ns1:TSPService><ns1:ServiceInformation>
          <ns1:ServiceTypeIdentifier>%s</ns1:ServiceTypeIdentifier>
          <ns1:ServiceName><ns1:Name xml:lang="en">%s</ns1:Name></ns1:ServiceName>
          <ns1:ServiceStatus>%s</ns1:ServiceStatus>
          <ns1:StatusStartingTime>2020-01-01T00:00:00Z</ns1:StatusStartingTime>
        </ns1:ServiceInformation></ns1:TSPService>`, s.Type, s.Name, s.Status)
	}
	b.WriteString(`
      </ns1:TSPServices>
    </ns1:TrustServiceProvider>
  </ns1:TrustServiceProviderList>
</ns1:TrustServiceStatusList>`)
	return []byte(b.String())
}
